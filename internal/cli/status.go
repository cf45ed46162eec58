package cli

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/inkstone-app/inkstone/internal/auth/pkce"
)

func (a *App) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication state and account identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			source, closeTS, err := a.newPKCESource()
			if err != nil {
				return err
			}
			defer func() {
				_ = closeTS()
			}()

			if !source.IsAuthenticated(ctx) {
				a.io.Println(colorWarning.Sprint("•"), "Not logged in. Run 'inkstone login' first.")
				return nil
			}

			a.io.Println(colorSuccess.Sprint("✔"), "Logged in")
			a.io.Printf("  engine:  %s\n", a.cfg.Engine)
			if email := accountEmail(ctx, source); email != "" {
				a.io.Printf("  account: %s\n", email)
			}
			return nil
		},
	}
}

// accountEmail extracts the email claim from the cached id_token. The token
// arrived over TLS from the issuer and is only displayed, never trusted for
// access, so its signature is not verified here.
func accountEmail(ctx context.Context, source *pkce.Source) string {
	idToken, err := source.IDToken(ctx)
	if err != nil || idToken == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return ""
	}

	email, _ := claims["email"].(string)
	return email
}
