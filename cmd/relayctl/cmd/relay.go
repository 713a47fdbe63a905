package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/userrelay/cmd/relayctl/internal/client"
	"github.com/telhawk-systems/userrelay/cmd/relayctl/internal/output"
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Fetch, decrypt and forward one envelope",
	Long:  "Ask the relay to fetch the upstream envelope, open it and forward the document to the webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")

		p, err := printer(cmd)
		if err != nil {
			return err
		}
		resp, err := relayClient(cmd).Execute(cmd.Context(), key)
		if err != nil {
			return fmt.Errorf("execute failed: %w", err)
		}
		return printRun(p, resp)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear data previously forwarded to the webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		resp, err := relayClient(cmd).Clear(cmd.Context())
		if err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
		return printRun(p, resp)
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users from the relay's user store",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")

		p, err := printer(cmd)
		if err != nil {
			return err
		}
		list, err := relayClient(cmd).Users(cmd.Context(), page, limit)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		if handled, err := p.Structured(list); handled {
			return err
		}

		table := output.NewTable([]string{"ID", "NAME", "EMAIL", "COMPANY", "CREATED"})
		for _, u := range list.Users {
			table.AddRow([]string{
				strconv.FormatInt(u.ID, 10),
				u.Name,
				u.Email,
				u.Company,
				u.CreatedAt.Format(time.RFC3339),
			})
		}
		table.Render(p.Out)
		p.Info("\nPage %d, %d of %d users", list.Page, len(list.Users), list.Total)
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent relay runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		p, err := printer(cmd)
		if err != nil {
			return err
		}
		list, err := relayClient(cmd).Runs(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to load runs: %w", err)
		}
		if handled, err := p.Structured(list); handled {
			return err
		}

		table := output.NewTable([]string{"TIME", "OPERATION", "OUTCOME", "RECORDS", "DURATION", "REQUEST"})
		for _, r := range list.Runs {
			outcome := "success"
			if !r.Success {
				outcome = r.Kind
			}
			table.AddRow([]string{
				r.Timestamp.Format(time.RFC3339),
				r.Operation,
				outcome,
				strconv.Itoa(r.Records),
				(time.Duration(r.DurationMS) * time.Millisecond).String(),
				r.RequestID,
			})
		}
		table.Render(p.Out)
		return nil
	},
}

func printRun(p *output.Printer, resp *client.RunResponse) error {
	if handled, err := p.Structured(resp); handled {
		return err
	}
	p.Success("%s", resp.Message)
	if resp.Operation == "execute" {
		p.Info("Records: %d", resp.Records)
		p.Info("Bytes:   %d", resp.Bytes)
	}
	return nil
}

func init() {
	executeCmd.Flags().String("key", "", "hex AES-256 key overriding the envelope's key")
	usersCmd.Flags().Int("page", 1, "page number")
	usersCmd.Flags().Int("limit", 50, "users per page")
	runsCmd.Flags().Int("limit", 20, "number of runs")

	rootCmd.AddCommand(executeCmd, clearCmd, usersCmd, runsCmd)
}
