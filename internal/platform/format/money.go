// Package format renders monetary amounts for the shopper's locale.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencySymbol prefixes every formatted amount. Prices are USD regardless of locale.
const CurrencySymbol = "$"

var supported = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Spanish,
	language.Italian,
	language.Japanese,
}

var matcher = language.NewMatcher(supported)

// MatchLanguage picks the best supported tag for an Accept-Language header, defaulting to en-US.
func MatchLanguage(acceptLanguage string) language.Tag {
	header := strings.TrimSpace(acceptLanguage)
	if header == "" {
		return language.AmericanEnglish
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return language.AmericanEnglish
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return language.AmericanEnglish
	}
	return supported[index]
}

// Money formats amount with two fraction digits and locale grouping, e.g. "$1,234.50".
func Money(tag language.Tag, amount decimal.Decimal) string {
	printer := message.NewPrinter(tag)
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	return sign + CurrencySymbol + printer.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(2)))
}

// Formatter binds a language tag so handlers can format several amounts in one response.
type Formatter struct {
	tag language.Tag
}

// NewFormatter returns a formatter for the Accept-Language header value.
func NewFormatter(acceptLanguage string) Formatter {
	return Formatter{tag: MatchLanguage(acceptLanguage)}
}

// Tag returns the negotiated language.
func (f Formatter) Tag() language.Tag {
	if f.tag == (language.Tag{}) {
		return language.AmericanEnglish
	}
	return f.tag
}

// Money formats amount in the bound locale.
func (f Formatter) Money(amount decimal.Decimal) string {
	return Money(f.Tag(), amount)
}
