package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkstone-app/inkstone/internal/syncer"
)

func (a *App) newRestoreCmd() *cobra.Command {
	var web bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Download the backup and replace the local database",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := a.readPassword()
			if err != nil {
				return err
			}

			o, cleanup, err := a.newOrchestrator(cmd.Context(), web)
			if err != nil {
				return err
			}
			defer cleanup()

			outcome, err := o.Restore(cmd.Context(), password)
			if err != nil {
				return err
			}

			switch outcome {
			case syncer.OutcomeRestored:
				a.io.Println(colorSuccess.Sprint("✔"), "Local database restored from backup")
				return nil
			case syncer.OutcomeNoBackup:
				a.io.Println(colorWarning.Sprint("•"), "No backup found for this account")
				return nil
			case syncer.OutcomeWrongPassword:
				a.io.Println(colorFailure.Sprint("⨯"), "Backup exists but the password is wrong")
				return fmt.Errorf("wrong encryption password")
			}
			return fmt.Errorf("unexpected restore outcome %v", outcome)
		},
	}

	cmd.Flags().BoolVar(&web, "web", false, "use the session-only implicit flow")
	return cmd
}
