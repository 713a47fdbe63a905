package cmd

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/userrelay/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator bearer token",
	Long:  "Sign a short-lived operator token with the relay's JWT secret (RELAY_AUTH_JWT_SECRET)",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		secretKey := os.Getenv("RELAY_AUTH_JWT_SECRET")
		if secretKey == "" {
			return errors.New("RELAY_AUTH_JWT_SECRET is not set")
		}

		p, err := printer(cmd)
		if err != nil {
			return err
		}

		token, err := auth.NewTokenGenerator(secretKey, ttl).GenerateAccessToken(name, []string{auth.RoleOperator})
		if err != nil {
			return err
		}

		if handled, err := p.Structured(map[string]string{
			"token":      token,
			"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
		}); handled {
			return err
		}
		p.Success("Operator token for %s (valid %s):", name, ttl)
		p.Info("%s", token)
		p.Info("\nUse it with:")
		p.Info("  relayctl --token <token> execute")
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("name", "relayctl", "name recorded in the token")
	tokenCmd.Flags().Duration("ttl", 15*time.Minute, "token lifetime")

	rootCmd.AddCommand(tokenCmd)
}
