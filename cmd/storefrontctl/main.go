package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/format"
	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
	"github.com/areebabashir/intrnecommerceproj1/internal/repositories/sqlite"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "storefrontctl: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	couponsFlag := &cli.StringFlag{
		Name:  "coupons",
		Usage: "YAML coupon catalog; the built-in coupons are used when empty",
	}
	localeFlag := &cli.StringFlag{
		Name:  "locale",
		Value: "en-US",
		Usage: "Accept-Language style locale used to format money",
	}

	return &cli.App{
		Name:      "storefrontctl",
		Usage:     "inspect and price storefront carts",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			{
				Name:  "quote",
				Usage: "price a persisted cart blob",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "cart", Required: true, Usage: "path to a cart JSON blob"},
					&cli.StringFlag{Name: "coupon", Usage: "coupon code to apply before pricing"},
					couponsFlag,
					localeFlag,
				},
				Action: func(c *cli.Context) error {
					coupons, err := loadCoupons(c.String("coupons"))
					if err != nil {
						return err
					}
					raw, err := os.ReadFile(c.String("cart"))
					if err != nil {
						return fmt.Errorf("read cart: %w", err)
					}
					state, dropped, err := services.ParseCartBlob(raw, coupons, time.Now())
					if err != nil {
						return err
					}
					if code := strings.TrimSpace(c.String("coupon")); code != "" {
						applied, err := applyCoupon(state, coupons, code)
						if err != nil {
							return err
						}
						state.AppliedCoupon = applied
					}
					return printQuote(c.App.Writer, state, dropped, format.NewFormatter(c.String("locale")))
				},
			},
			{
				Name:  "coupons",
				Usage: "list the coupon catalog",
				Flags: []cli.Flag{couponsFlag, localeFlag},
				Action: func(c *cli.Context) error {
					coupons, err := loadCoupons(c.String("coupons"))
					if err != nil {
						return err
					}
					f := format.NewFormatter(c.String("locale"))
					tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "CODE\tKIND\tAMOUNT\tMIN ORDER\tDESCRIPTION")
					for _, coupon := range coupons.List() {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", coupon.Code, coupon.Kind, coupon.Amount.String(), f.Money(coupon.MinOrderSubtotal), coupon.Description)
					}
					return tw.Flush()
				},
			},
			{
				Name:  "inspect",
				Usage: "print a stored session cart from the SQLite backend",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Required: true, Usage: "path to the SQLite database"},
					&cli.StringFlag{Name: "session", Usage: "session id; lists stored sessions when empty"},
					couponsFlag,
					localeFlag,
				},
				Action: func(c *cli.Context) error {
					repo, err := sqlite.Open(c.Context, c.String("db"))
					if err != nil {
						return err
					}
					defer repo.Close()

					sessionID := strings.TrimSpace(c.String("session"))
					if sessionID == "" {
						return listSessions(c, repo)
					}

					coupons, err := loadCoupons(c.String("coupons"))
					if err != nil {
						return err
					}
					raw, err := repo.Get(c.Context, services.SessionKey(sessionID, services.CartStateKey))
					if err != nil {
						if repositories.IsNotFound(err) {
							return fmt.Errorf("session %s has no stored cart", sessionID)
						}
						return err
					}
					state, dropped, err := services.ParseCartBlob(raw, coupons, time.Now())
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "session %s\n", sessionID)
					return printQuote(c.App.Writer, state, dropped, format.NewFormatter(c.String("locale")))
				},
			},
		},
	}
}

func loadCoupons(path string) (*services.CouponCatalog, error) {
	if path = strings.TrimSpace(path); path == "" {
		return services.DefaultCouponCatalog(), nil
	}
	return services.LoadCouponCatalogFile(path)
}

func applyCoupon(state domain.CartState, coupons *services.CouponCatalog, code string) (*domain.AppliedCoupon, error) {
	coupon, err := coupons.Resolve(services.NormalizeCouponCode(code))
	if err != nil {
		return nil, fmt.Errorf("coupon %q: %w", code, err)
	}
	engine, err := services.NewPricingEngine(services.DefaultPricingPolicy())
	if err != nil {
		return nil, err
	}
	subtotal := engine.Subtotal(state.Items)
	if subtotal.LessThan(coupon.MinOrderSubtotal) {
		return nil, &services.InsufficientOrderValueError{Code: coupon.Code, Required: coupon.MinOrderSubtotal, Subtotal: subtotal}
	}
	return &domain.AppliedCoupon{Coupon: coupon, AppliedAt: time.Now().UTC()}, nil
}

func printQuote(w io.Writer, state domain.CartState, dropped []string, f format.Formatter) error {
	engine, err := services.NewPricingEngine(services.DefaultPricingPolicy())
	if err != nil {
		return err
	}
	totals := engine.Price(state.Items, state.AppliedCoupon)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tQTY\tUNIT\tLINE")
	for _, item := range state.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", item.ID, item.Title, item.Quantity, f.Money(item.UnitPrice), f.Money(item.LineTotal()))
	}
	fmt.Fprintln(tw, "\t\t\t\t")
	fmt.Fprintf(tw, "Subtotal\t\t\t\t%s\n", f.Money(totals.Subtotal))
	fmt.Fprintf(tw, "Shipping\t\t\t\t%s\n", f.Money(totals.Shipping))
	if state.AppliedCoupon != nil {
		fmt.Fprintf(tw, "Discount (%s)\t\t\t\t-%s\n", state.AppliedCoupon.Code, f.Money(totals.Discount))
	}
	fmt.Fprintf(tw, "Tax\t\t\t\t%s\n", f.Money(totals.Tax))
	fmt.Fprintf(tw, "Total\t\t\t\t%s\n", f.Money(totals.Total))
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(dropped) > 0 {
		fmt.Fprintf(w, "dropped %d malformed item(s): %s\n", len(dropped), strings.Join(dropped, ", "))
	}
	return nil
}

func listSessions(c *cli.Context, repo *sqlite.KeyValueRepository) error {
	keys, err := repo.Keys(c.Context, "sessions/")
	if err != nil {
		return err
	}
	seen := make(map[string]struct{})
	for _, key := range keys {
		rest := strings.TrimPrefix(key, "sessions/")
		id, _, _ := strings.Cut(rest, "/")
		if id != "" {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintln(c.App.Writer, id)
	}
	if len(ids) == 0 {
		fmt.Fprintln(c.App.Writer, "no stored sessions")
	}
	return nil
}
