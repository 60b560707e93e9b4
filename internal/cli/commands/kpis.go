package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/painel-dev/painel/internal/cli/client"
	"github.com/painel-dev/painel/internal/session"
)

// NewKPIsCmd creates the kpis command
func NewKPIsCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Show the general indicators for the current month",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKPIs(cmd.Context(), WithServerAlias(serverAlias), WithOutput(cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses selected server if not specified)")

	return cmd
}

func runKPIs(ctx context.Context, opts ...Option) error {
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
	kpis, err := t.api.GetKPIs(ctx)
	if err != nil {
		return apiFailure(t, "failed to fetch KPIs", err)
	}

	printKPIs(t.out, kpis)
	return nil
}

func printKPIs(w io.Writer, kpis *client.KPIs) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Month:\t%s\n", kpis.Month)
	fmt.Fprintf(tw, "Sales this month:\t%.0f\n", kpis.CurrentMonthSales)
	fmt.Fprintf(tw, "Sales target:\t%.0f (%.1f%%)\n", kpis.SalesTarget, kpis.TargetPercent())
	fmt.Fprintf(tw, "Products:\t%d\n", kpis.TotalProducts)
	tw.Flush()
}
