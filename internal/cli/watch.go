package cli

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func (a *App) newWatchCmd() *cobra.Command {
	var (
		web   bool
		every time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Back up on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := a.readPassword()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			o, cleanup, err := a.newOrchestrator(ctx, web)
			if err != nil {
				return err
			}
			defer cleanup()

			// First backup runs immediately; the ticker covers the rest.
			if err := o.Backup(ctx, password); err != nil {
				return err
			}
			a.io.Println(colorSuccess.Sprint("✔"), "Initial backup complete, watching every", every.String())

			stop := o.StartAutoSync(password, every)
			defer stop()

			<-ctx.Done()
			a.io.Println("Stopping...")
			return nil
		},
	}

	cmd.Flags().BoolVar(&web, "web", false, "use the session-only implicit flow")
	cmd.Flags().DurationVar(&every, "every", 15*time.Minute, "backup interval")
	return cmd
}
