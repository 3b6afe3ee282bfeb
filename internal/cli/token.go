package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/temcen/crosssale/internal/services"
)

var tokenTerminal string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a terminal",
	Long: `Mint a bearer token for a point-of-sale terminal.

The token is signed with auth.jwt_secret and expires after auth.token_ttl.

Example:
  crosssale token --terminal till-01`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenTerminal, "terminal", "", "terminal identifier (required)")
	_ = tokenCmd.MarkFlagRequired("terminal")
}

func runToken(cmd *cobra.Command, args []string) error {
	auth := services.NewAuthService(cfg.Auth, logger)

	signed, expiresAt, err := auth.GenerateToken(tokenTerminal)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, signed)
	fmt.Fprintf(out, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
