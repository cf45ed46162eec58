package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func (a *App) newImportLegacyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-legacy <file>",
		Short: "Import an export produced by the old snapshot format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read legacy export: %w", err)
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				_ = st.Close()
			}()

			if err := st.ImportLegacy(cmd.Context(), raw); err != nil {
				return err
			}
			a.io.Println(colorSuccess.Sprint("✔"), "Legacy export imported")
			return nil
		},
	}
}
