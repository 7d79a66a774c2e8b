package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"hisaab/internal/core"
	"hisaab/internal/ledger"
	"hisaab/internal/storage"
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("email", "", "Account email (required)")
	reportCmd.Flags().Int("month", 0, "Month 1-12 (default current)")
	reportCmd.Flags().Int("year", 0, "Year (default current)")
	reportCmd.Flags().Bool("all", false, "Report all time instead of one month")
	_ = reportCmd.MarkFlagRequired("email")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print monthly totals, payment methods and account balances",
	Example: `  hisaab report --email asha@example.com
  hisaab report --email asha@example.com --month 3 --year 2024`,
	RunE: runReport,
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger := SetupLogger(cfg)

	email, _ := cmd.Flags().GetString("email")
	month, _ := cmd.Flags().GetInt("month")
	year, _ := cmd.Flags().GetInt("year")
	all, _ := cmd.Flags().GetBool("all")

	period, err := reportPeriod(month, year, all, time.Now(), cfg.Location())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Cleanup()

	u, err := store.Store.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("look up %s: %w", email, err)
	}
	txs, err := store.Store.ListTransactions(ctx, u.ID, storage.ListFilter{})
	if err != nil {
		return err
	}
	loans, err := store.Store.ListLoans(ctx, u.ID)
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), u, period, txs, loans, cfg.Currency)
}

func reportPeriod(month, year int, all bool, now time.Time, loc *time.Location) (ledger.Period, error) {
	if all {
		return ledger.Period{}, nil
	}
	p := ledger.CurrentPeriod(now, loc)
	if month != 0 {
		if month < 1 || month > 12 {
			return ledger.Period{}, fmt.Errorf("month must be 1-12, got %d", month)
		}
		p.Month = month
	}
	if year != 0 {
		if year < 1 || year > 9999 {
			return ledger.Period{}, fmt.Errorf("invalid year %d", year)
		}
		p.Year = year
	}
	return p, nil
}

var accountTypeTitles = map[core.AccountType]string{
	core.LoanGiven:  "Loans given",
	core.LoanTaken:  "Loans taken",
	core.CreditCard: "Credit cards",
}

// writeReport prints a plain-text summary. Write errors surface from Flush.
func writeReport(w io.Writer, u core.User, p ledger.Period, txs []core.Transaction, loans []core.LoanAccount, currency string) error {
	amount := func(d decimal.Decimal) string { return core.FormatAmount(d, currency) }

	title := "all time"
	if !p.IsZero() {
		title = time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	totals := ledger.ComputeTotals(txs, ledger.TotalsQuery{Period: p})
	fmt.Fprintf(tw, "%s, %s\n\n", u.Email, title)
	fmt.Fprintf(tw, "Credit\t%s\n", amount(totals.Credit))
	fmt.Fprintf(tw, "Debit\t%s\n", amount(totals.Debit))
	fmt.Fprintf(tw, "Balance (all time)\t%s\n", amount(totals.Balance))

	if rows := ledger.ComputeMethodBreakdown(txs, p); len(rows) > 0 {
		fmt.Fprintf(tw, "\nMethod\tCount\tCredit\tDebit\n")
		for _, b := range rows {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", b.Name, b.Count, amount(b.Credit), amount(b.Debit))
		}
	}

	s := ledger.ComputeSectionTotals(txs)
	fmt.Fprintf(tw, "\nCash\t%s\n", amount(s.Cash))
	fmt.Fprintf(tw, "Account\t%s\n", amount(s.Account))
	fmt.Fprintf(tw, "Credit Card\t%s\n", amount(s.CreditCard))

	for _, g := range ledger.SummarizeAccounts(loans) {
		if len(g.Accounts) == 0 {
			continue
		}
		fmt.Fprintf(tw, "\n%s\t%s\n", accountTypeTitles[g.Type], amount(g.Total))
		for _, a := range g.Accounts {
			fmt.Fprintf(tw, "  %s\t%s\n", a.Name, amount(a.Balance))
		}
	}
	return tw.Flush()
}
