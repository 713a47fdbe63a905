package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/userrelay/cmd/relayctl/internal/client"
	"github.com/telhawk-systems/userrelay/cmd/relayctl/internal/output"
)

const defaultServer = "http://127.0.0.1:3001"

var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "userrelay CLI",
	Long: `relayctl drives a running relay service and builds or inspects
encrypted envelopes locally.

Server commands (execute, clear, users, runs) talk to --server. Envelope
commands (seal, open) never contact the service.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		if p, perr := printer(rootCmd); perr == nil {
			p.Error("%v", err)
		}
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().String("server", envOr("RELAY_SERVER", defaultServer), "relay service base URL")
	rootCmd.PersistentFlags().String("token", os.Getenv("RELAY_TOKEN"), "bearer token for execute and clear")
	rootCmd.PersistentFlags().StringP("output", "o", output.FormatTable, "output format: table, json, yaml")
}

func printer(cmd *cobra.Command) (*output.Printer, error) {
	format, _ := cmd.Flags().GetString("output")
	return output.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), format)
}

func relayClient(cmd *cobra.Command) *client.RelayClient {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	return client.NewRelayClient(server, token)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
