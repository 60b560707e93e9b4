package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/painel-dev/painel/internal/cli/client"
	"github.com/painel-dev/painel/internal/session"
	"github.com/painel-dev/painel/internal/stock"
)

const historyDateLayout = "2006-01-02"

// NewProductCmd creates the product command
func NewProductCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "product <code>",
		Short: "Show the stock card and movement history of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProduct(cmd.Context(), args[0], WithServerAlias(serverAlias), WithOutput(cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses selected server if not specified)")

	return cmd
}

func runProduct(ctx context.Context, code string, opts ...Option) error {
	t, err := openTab(opts...)
	if err != nil {
		return err
	}
	defer t.Close()

	if err := session.RequireAuth(t.session); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	product, err := t.api.GetProduct(ctx, code)
	if err != nil {
		return apiFailure(t, "failed to fetch product", err)
	}

	records, err := stockRecords(product.History)
	if err != nil {
		return err
	}

	printProductCard(t.out, product, stock.Summarize(records))
	printHistory(t.out, product.History)

	return nil
}

// stockRecords converts API history into input for stock.Summarize
func stockRecords(history []client.HistoryRecord) ([]stock.Record, error) {
	records := make([]stock.Record, 0, len(history))
	for _, h := range history {
		date, err := parseHistoryDate(h.Date)
		if err != nil {
			return nil, err
		}
		records = append(records, stock.Record{
			Date:         date,
			SoldQuantity: h.SoldQuantity,
			ClosingStock: h.ClosingStock,
		})
	}
	return records, nil
}

func parseHistoryDate(value string) (time.Time, error) {
	if len(value) >= len(historyDateLayout) {
		if d, err := time.Parse(historyDateLayout, value[:len(historyDateLayout)]); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid history date %q", value)
}

func printProductCard(w io.Writer, product *client.Product, summary stock.Summary) {
	coverage := "N/A"
	if summary.CoverageDays != nil {
		coverage = fmt.Sprintf("%d days", *summary.CoverageDays)
	}
	turnover := "N/A"
	if summary.Turnover != nil {
		turnover = fmt.Sprintf("%.2f", *summary.Turnover)
	}

	fmt.Fprintf(w, "%s - %s\n\n", product.ProductCode, product.ProductName)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Current stock:\t%d\n", summary.CurrentStock)
	fmt.Fprintf(tw, "Sales this month:\t%d\n", summary.CurrentMonthSales)
	fmt.Fprintf(tw, "Sales last month:\t%d\n", summary.LastMonthSales)
	fmt.Fprintf(tw, "Coverage:\t%s\n", coverage)
	fmt.Fprintf(tw, "Turnover:\t%s\n", turnover)
	fmt.Fprintf(tw, "Health:\t%s\n", summary.Health)
	tw.Flush()
}

func printHistory(w io.Writer, history []client.HistoryRecord) {
	if len(history) == 0 {
		fmt.Fprintln(w, "\nNo movement history.")
		return
	}

	sorted := append([]client.HistoryRecord(nil), history...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date > sorted[j].Date
	})

	fmt.Fprintln(w, "\nHistory:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tOPENING\tINBOUND\tSOLD\tCLOSING")
	fmt.Fprintln(tw, "────\t───────\t───────\t────\t───────")
	for _, h := range sorted {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n",
			h.Date,
			h.OpeningStock,
			h.InboundQuantity,
			h.SoldQuantity,
			h.ClosingStock,
		)
	}
	tw.Flush()
}

// apiFailure reports a failed call, turning a 401 that ended the session into
// the usual login hint
func apiFailure(t *tab, msg string, err error) error {
	if errors.Is(err, client.ErrUnauthorized) && !t.session.IsAuthenticated() {
		return fmt.Errorf("session expired: %w", session.ErrNotAuthenticated)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
