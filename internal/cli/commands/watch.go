package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/painel-dev/painel/internal/session"
)

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	var serverAlias string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the KPIs on screen, refreshing until interrupted or logged out",
		Long: `Keep the KPIs on screen, refreshing until interrupted or logged out.

Running 'painel logout' in another terminal ends every watch on the same server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, interval, WithServerAlias(serverAlias), WithOutput(cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses selected server if not specified)")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Refresh interval")

	return cmd
}

func runWatch(ctx context.Context, interval time.Duration, opts ...Option) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	loggedOut := make(chan struct{})
	var once sync.Once
	opts = append(opts, withSessionOption(session.WithLogoutHook(func() {
		once.Do(func() { close(loggedOut) })
	})))

	t, err := openTab(opts...)
	if err != nil {
		return err
	}
	defer t.Close()

	if err := session.RequireAuth(t.session); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if kpis, err := t.api.GetKPIs(ctx); err != nil {
			if !t.session.IsAuthenticated() {
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(t.out, "⚠ Failed to refresh KPIs: %v\n", err)
		} else {
			fmt.Fprintf(t.out, "\n[%s]\n", time.Now().Format("15:04:05"))
			printKPIs(t.out, kpis)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-loggedOut:
			fmt.Fprintln(t.out, "\nSession ended.")
			return session.ErrNotAuthenticated
		case <-ticker.C:
		}
	}

	fmt.Fprintln(t.out, "\nSession ended.")
	return session.ErrNotAuthenticated
}
