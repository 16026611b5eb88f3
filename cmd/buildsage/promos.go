package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/buildsage/buildsage/adapters/idgen"
	"github.com/buildsage/buildsage/adapters/sqlite"
	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/domain/promo"
	"github.com/spf13/cobra"
)

var promosCmd = &cobra.Command{
	Use:   "promos",
	Short: "Manage promotions",
	Long: `Manage promotion codes.

A promotion grants a plan upgrade to each account that redeems it,
at most once per account, until its use limit or expiry is reached.

Examples:
  buildsage promos list
  buildsage promos create --code=LAUNCH50 --grants=pro --max-uses=50
  buildsage promos create --code=SPRING --grants=plus --expires=2026-04-01`,
}

var promosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all promotions",
	RunE:  runPromosList,
}

var promosCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new promotion",
	RunE:  runPromosCreate,
}

var (
	promoCode    string
	promoGrants  string
	promoMaxUses int64
	promoExpires string
)

func init() {
	rootCmd.AddCommand(promosCmd)

	promosCmd.AddCommand(promosListCmd)
	promosCmd.AddCommand(promosCreateCmd)

	promosCreateCmd.Flags().StringVar(&promoCode, "code", "", "promotion code (required)")
	promosCreateCmd.Flags().StringVar(&promoGrants, "grants", "", "plan to grant: plus, pro, ultra (required)")
	promosCreateCmd.Flags().Int64Var(&promoMaxUses, "max-uses", 0, "redemption limit (required)")
	promosCreateCmd.Flags().StringVar(&promoExpires, "expires", "", "expiry date, YYYY-MM-DD")
	promosCreateCmd.MarkFlagRequired("code")
	promosCreateCmd.MarkFlagRequired("grants")
	promosCreateCmd.MarkFlagRequired("max-uses")
}

func runPromosList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewPromotionStore(db)
	promos, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list promotions: %w", err)
	}

	if len(promos) == 0 {
		fmt.Println("No promotions found.")
		fmt.Println()
		fmt.Println("Create one with: buildsage promos create --code=LAUNCH --grants=pro")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tGRANTS\tUSED\tMAX\tACTIVE\tEXPIRES")
	fmt.Fprintln(w, "----\t------\t----\t---\t------\t-------")

	for _, p := range promos {
		expires := "-"
		if p.ExpiresAt != nil {
			expires = p.ExpiresAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%v\t%s\n", p.Code, p.GrantedPlan, p.UsedCount, p.MaxUses, p.Active, expires)
	}

	w.Flush()
	return nil
}

func runPromosCreate(cmd *cobra.Command, args []string) error {
	grants, ok := plan.ParseCode(strings.ToUpper(promoGrants))
	if !ok {
		return fmt.Errorf("unknown plan: %s", promoGrants)
	}
	if promoMaxUses <= 0 {
		return fmt.Errorf("--max-uses must be positive")
	}

	var expiresAt *time.Time
	if promoExpires != "" {
		t, err := time.Parse("2006-01-02", promoExpires)
		if err != nil {
			return fmt.Errorf("invalid expiry date %q, want YYYY-MM-DD", promoExpires)
		}
		expiresAt = &t
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewPromotionStore(db)

	p := promo.Promotion{
		ID:          idgen.UUID{}.New(),
		Code:        promoCode,
		GrantedPlan: grants,
		MaxUses:     promoMaxUses,
		Active:      true,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now().UTC(),
	}

	if err := store.Create(context.Background(), p); err != nil {
		return fmt.Errorf("failed to create promotion: %w", err)
	}

	fmt.Printf("%s Created promotion: %s\n", checkMark, p.Code)
	fmt.Printf("   Grants: %s\n", p.GrantedPlan)
	fmt.Printf("   Max uses: %d\n", p.MaxUses)
	if expiresAt != nil {
		fmt.Printf("   Expires: %s\n", expiresAt.Format("2006-01-02"))
	}

	return nil
}
