package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/buildsage/buildsage/adapters/sqlite"
	"github.com/buildsage/buildsage/config"
	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/ports"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage accounts",
	Long: `Manage BuildSage accounts.

Each account carries a plan, a billing reference, and a rolling set of
usage counters. Plan changes made here bypass the billing processor,
so use set-plan for support overrides only.

Examples:
  buildsage accounts get alice@example.com
  buildsage accounts set-plan acc_123 --plan=pro`,
}

var accountsGetCmd = &cobra.Command{
	Use:   "get <account-id-or-email>",
	Short: "Show account details and usage",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsGet,
}

var accountsSetPlanCmd = &cobra.Command{
	Use:   "set-plan <account-id-or-email>",
	Short: "Override an account's plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsSetPlan,
}

var accountPlan string

func init() {
	rootCmd.AddCommand(accountsCmd)

	accountsCmd.AddCommand(accountsGetCmd)
	accountsCmd.AddCommand(accountsSetPlanCmd)

	accountsSetPlanCmd.Flags().StringVar(&accountPlan, "plan", "", "plan code: free, plus, pro, ultra, admin (required)")
	accountsSetPlanCmd.MarkFlagRequired("plan")
}

func openDatabase() (*sqlite.DB, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}

// getAccountByIDOrEmail retrieves an account by ID or email address.
func getAccountByIDOrEmail(store *sqlite.AccountStore, identifier string) (ports.Account, error) {
	ctx := context.Background()

	// If it contains @, treat as email
	if strings.Contains(identifier, "@") {
		return store.GetByEmail(ctx, identifier)
	}

	return store.Get(ctx, identifier)
}

func runAccountsGet(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewAccountStore(db)
	account, err := getAccountByIDOrEmail(store, args[0])
	if err != nil {
		return fmt.Errorf("account not found: %s", args[0])
	}

	fmt.Printf("ID:      %s\n", account.ID)
	fmt.Printf("Email:   %s\n", account.Email)
	fmt.Printf("Plan:    %s\n", account.Plan)
	if account.PlanRenewsAt != nil {
		fmt.Printf("Renews:  %s\n", account.PlanRenewsAt.Format("2006-01-02 15:04:05"))
	}
	if account.BillingRef != "" {
		fmt.Printf("Billing: %s\n", account.BillingRef)
	}
	fmt.Printf("Created: %s\n", account.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tUSED")
	fmt.Fprintln(w, "----\t----")
	for _, tool := range plan.Tools {
		fmt.Fprintf(w, "%s\t%d\n", tool, account.Usage.For(tool))
	}
	w.Flush()

	fmt.Println()
	fmt.Printf("Cycle started: %s\n", account.Usage.ResetAt.Format("2006-01-02 15:04:05"))

	return nil
}

func runAccountsSetPlan(cmd *cobra.Command, args []string) error {
	code, ok := plan.ParseCode(strings.ToUpper(accountPlan))
	if !ok {
		return fmt.Errorf("unknown plan: %s", accountPlan)
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewAccountStore(db)
	account, err := getAccountByIDOrEmail(store, args[0])
	if err != nil {
		return fmt.Errorf("account not found: %s", args[0])
	}

	if account.Plan == code {
		fmt.Printf("Account %s is already on plan %s\n", account.Email, code)
		return nil
	}

	if err := store.SetPlan(context.Background(), account.ID, code, account.PlanRenewsAt); err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}

	fmt.Printf("%s Plan changed: %s (%s) %s -> %s\n", checkMark, account.Email, account.ID, account.Plan, code)
	return nil
}
