package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage webhook subscriptions",
}

var webhookCreateCmd = &cobra.Command{
	Use:   "create [project-id] [url]",
	Short: "Create a webhook subscription",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		body := map[string]any{"url": args[1]}
		if secret != "" {
			body["secret"] = secret
		}
		raw, _, err := doRequest("POST", fmt.Sprintf("/projects/%s/webhooks", args[0]), body)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var webhookListCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List webhook subscriptions for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _, err := doRequest("GET", fmt.Sprintf("/projects/%s/webhooks", args[0]), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var webhookGetCmd = &cobra.Command{
	Use:   "get [webhook-id]",
	Short: "Fetch a webhook subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _, err := doRequest("GET", fmt.Sprintf("/webhooks/%s", args[0]), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var webhookDisableCmd = &cobra.Command{
	Use:   "disable [webhook-id]",
	Short: "Disable a webhook subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _, err := doRequest("POST", fmt.Sprintf("/webhooks/%s/disable", args[0]), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var webhookCircuitStatusCmd = &cobra.Command{
	Use:   "circuit-status [webhook-id]",
	Short: "Show the circuit breaker state for a webhook's URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _, err := doRequest("GET", fmt.Sprintf("/webhooks/%s/circuit-status", args[0]), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var webhookDeliveriesCmd = &cobra.Command{
	Use:   "deliveries [project-id]",
	Short: "List webhook deliveries for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		path := fmt.Sprintf("/projects/%s/webhook-deliveries?limit=%d", args[0], limit)
		if status != "" {
			path += "&status=" + status
		}
		raw, _, err := doRequest("GET", path, nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

func init() {
	rootCmd.AddCommand(webhookCmd)
	webhookCmd.AddCommand(webhookCreateCmd)
	webhookCmd.AddCommand(webhookListCmd)
	webhookCmd.AddCommand(webhookGetCmd)
	webhookCmd.AddCommand(webhookDisableCmd)
	webhookCmd.AddCommand(webhookCircuitStatusCmd)
	webhookCmd.AddCommand(webhookDeliveriesCmd)

	webhookCreateCmd.Flags().String("secret", "", "HMAC signing secret")
	webhookDeliveriesCmd.Flags().String("status", "", "filter by delivery status")
	webhookDeliveriesCmd.Flags().Int("limit", 50, "max deliveries to return")
}
