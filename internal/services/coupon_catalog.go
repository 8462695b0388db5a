package services

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
)

// CouponResolver looks up coupons by code.
type CouponResolver interface {
	Resolve(code string) (domain.Coupon, error)
}

// CouponCatalog is an immutable, case-insensitive coupon table.
type CouponCatalog struct {
	coupons map[string]domain.Coupon
}

// DefaultCoupons returns the built-in storefront coupons.
func DefaultCoupons() []domain.Coupon {
	return []domain.Coupon{
		{
			Code:             "SAVE10",
			Kind:             domain.CouponKindPercentage,
			Amount:           decimal.RequireFromString("0.10"),
			MinOrderSubtotal: decimal.NewFromInt(50),
			Description:      "10% off",
		},
		{
			Code:             "FLAT50",
			Kind:             domain.CouponKindFlat,
			Amount:           decimal.NewFromInt(50),
			MinOrderSubtotal: decimal.NewFromInt(100),
			Description:      "$50 off",
		},
		{
			Code:             "WELCOME",
			Kind:             domain.CouponKindPercentage,
			Amount:           decimal.RequireFromString("0.15"),
			MinOrderSubtotal: decimal.Zero,
			Description:      "15% off for new customers",
		},
	}
}

// DefaultCouponCatalog returns a catalog holding DefaultCoupons.
func DefaultCouponCatalog() *CouponCatalog {
	catalog, err := NewCouponCatalog(DefaultCoupons())
	if err != nil {
		panic(err)
	}
	return catalog
}

// NewCouponCatalog validates the coupons and indexes them by normalized code.
func NewCouponCatalog(coupons []domain.Coupon) (*CouponCatalog, error) {
	index := make(map[string]domain.Coupon, len(coupons))
	for _, coupon := range coupons {
		code := NormalizeCouponCode(coupon.Code)
		if code == "" {
			return nil, fmt.Errorf("%w: empty code", ErrCouponCatalogInvalid)
		}
		if _, exists := index[code]; exists {
			return nil, fmt.Errorf("%w: duplicate code %s", ErrCouponCatalogInvalid, code)
		}
		if err := validateCoupon(coupon); err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrCouponCatalogInvalid, code, err.Error())
		}
		coupon.Code = code
		index[code] = coupon
	}
	return &CouponCatalog{coupons: index}, nil
}

func validateCoupon(coupon domain.Coupon) error {
	if coupon.MinOrderSubtotal.IsNegative() {
		return errors.New("minimum order must be non-negative")
	}
	switch coupon.Kind {
	case domain.CouponKindPercentage:
		if !coupon.Amount.IsPositive() || coupon.Amount.GreaterThan(decimal.NewFromInt(1)) {
			return errors.New("percentage amount must be in (0, 1]")
		}
	case domain.CouponKindFlat:
		if coupon.Amount.IsNegative() {
			return errors.New("flat amount must be non-negative")
		}
	default:
		return fmt.Errorf("unknown kind %q", coupon.Kind)
	}
	return nil
}

// NormalizeCouponCode trims and uppercases a user supplied code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve returns the coupon for code regardless of case.
func (c *CouponCatalog) Resolve(code string) (domain.Coupon, error) {
	if c == nil {
		return domain.Coupon{}, ErrCouponNotFound
	}
	coupon, ok := c.coupons[NormalizeCouponCode(code)]
	if !ok {
		return domain.Coupon{}, ErrCouponNotFound
	}
	return coupon, nil
}

// List returns all coupons sorted by code.
func (c *CouponCatalog) List() []domain.Coupon {
	if c == nil {
		return nil
	}
	coupons := make([]domain.Coupon, 0, len(c.coupons))
	for _, coupon := range c.coupons {
		coupons = append(coupons, coupon)
	}
	sort.Slice(coupons, func(i, j int) bool {
		return coupons[i].Code < coupons[j].Code
	})
	return coupons
}

type couponFile struct {
	Coupons []couponFileEntry `yaml:"coupons"`
}

type couponFileEntry struct {
	Code        string `yaml:"code"`
	Kind        string `yaml:"kind"`
	Amount      string `yaml:"amount"`
	MinOrder    string `yaml:"min_order"`
	Description string `yaml:"description"`
}

// LoadCouponCatalogFile reads a YAML coupon table, e.g.
//
//	coupons:
//	  - code: SPRING20
//	    kind: percentage
//	    amount: 0.20
//	    min_order: 80
//	    description: 20% off spring collection
func LoadCouponCatalogFile(path string) (*CouponCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("coupon catalog: read %s: %w", path, err)
	}
	return ParseCouponCatalog(raw)
}

// ParseCouponCatalog decodes a YAML coupon table.
func ParseCouponCatalog(raw []byte) (*CouponCatalog, error) {
	var file couponFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCouponCatalogInvalid, err)
	}
	if len(file.Coupons) == 0 {
		return nil, fmt.Errorf("%w: no coupons defined", ErrCouponCatalogInvalid)
	}

	coupons := make([]domain.Coupon, 0, len(file.Coupons))
	for i, entry := range file.Coupons {
		amount, err := decimal.NewFromString(strings.TrimSpace(entry.Amount))
		if err != nil {
			return nil, fmt.Errorf("%w: coupons[%d].amount: %v", ErrCouponCatalogInvalid, i, err)
		}
		minOrder := decimal.Zero
		if trimmed := strings.TrimSpace(entry.MinOrder); trimmed != "" {
			minOrder, err = decimal.NewFromString(trimmed)
			if err != nil {
				return nil, fmt.Errorf("%w: coupons[%d].min_order: %v", ErrCouponCatalogInvalid, i, err)
			}
		}
		coupons = append(coupons, domain.Coupon{
			Code:             entry.Code,
			Kind:             domain.CouponKind(strings.ToLower(strings.TrimSpace(entry.Kind))),
			Amount:           amount,
			MinOrderSubtotal: minOrder,
			Description:      strings.TrimSpace(entry.Description),
		})
	}
	return NewCouponCatalog(coupons)
}
