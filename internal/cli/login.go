package cli

import (
	"github.com/spf13/cobra"
)

func (a *App) newLoginCmd() *cobra.Command {
	var web bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize access to your cloud storage",
		Long: `Runs the browser authorization flow. By default tokens are cached on disk
and refreshed silently. With --web the implicit grant is used instead: the
token lives only for this process and nothing is persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, closeTS, err := a.tokenSource(web)
			if err != nil {
				return err
			}
			defer func() {
				_ = closeTS()
			}()

			a.io.Println("Opening browser for authorization...")
			if err := ts.Authenticate(cmd.Context()); err != nil {
				return err
			}

			a.io.Println(colorSuccess.Sprint("✔"), "Logged in")
			if web {
				a.io.Println(colorWarning.Sprint("•"), "Session token only: it is not persisted and expires with this process")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&web, "web", false, "use the session-only implicit flow (no stored tokens)")
	return cmd
}
