package cli

import (
	"github.com/spf13/cobra"

	"github.com/inkstone-app/inkstone/internal/syncer"
)

func (a *App) newBackupCmd() *cobra.Command {
	var web bool

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Encrypt the local database and upload it",
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

			if err := o.Backup(cmd.Context(), password); err != nil {
				return err
			}
			a.io.Println(colorSuccess.Sprint("✔"), "Backup uploaded as", syncer.BackupObjectName)
			return nil
		},
	}

	cmd.Flags().BoolVar(&web, "web", false, "use the session-only implicit flow")
	return cmd
}
