// Package cli wires the sync engine into a cobra command tree.
package cli

import (
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/inkstone-app/inkstone/internal/config"
	"github.com/inkstone-app/inkstone/internal/iocli"
)

var (
	colorSuccess = color.New(color.FgGreen)
	colorWarning = color.New(color.FgYellow)
	colorFailure = color.New(color.FgRed)
)

// App carries the shared dependencies and persistent flag values for every
// command.
type App struct {
	cfg    *config.Config
	io     iocli.IO
	logger *slog.Logger

	passwordFile string
	passwordFlag string
}

// NewRootCmd builds the root command with all subcommands registered.
func NewRootCmd(cfg *config.Config, io iocli.IO, logger *slog.Logger) *cobra.Command {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	app := &App{cfg: cfg, io: io, logger: logger}

	root := &cobra.Command{
		Use:           "inkstone",
		Short:         "Inkstone cloud sync: encrypted backups of your writing database",
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&app.passwordFile, "password-file", "", "file containing the encryption password")
	pf.StringVar(&app.passwordFlag, "password", "", "encryption password (prefer INKSTONE_PASSWORD or --password-file)")

	root.AddCommand(
		app.newLoginCmd(),
		app.newLogoutCmd(),
		app.newStatusCmd(),
		app.newBackupCmd(),
		app.newRestoreCmd(),
		app.newWatchCmd(),
		app.newExportCmd(),
		app.newImportLegacyCmd(),
	)
	return root
}
