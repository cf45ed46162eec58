package cli

import (
	"github.com/spf13/cobra"
)

func (a *App) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget cached tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, closeTS, err := a.newPKCESource()
			if err != nil {
				return err
			}
			defer func() {
				_ = closeTS()
			}()

			if err := source.Logout(cmd.Context()); err != nil {
				return err
			}
			a.io.Println(colorSuccess.Sprint("✔"), "Logged out")
			return nil
		},
	}
}
