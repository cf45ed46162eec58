package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func (a *App) newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the canonical database snapshot as plain JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				_ = st.Close()
			}()

			data, err := st.Export(cmd.Context())
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = a.io.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("failed to write snapshot: %w", err)
			}
			a.io.Println(colorSuccess.Sprint("✔"), "Snapshot written to", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "-", "output file ('-' for stdout)")
	return cmd
}
