package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Manage organizations",
}

var orgCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an organization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _, err := doRequest("POST", "/orgs", map[string]any{"name": args[0]})
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [org-id] [name]",
	Short: "Create a project under an organization",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _, err := doRequest("POST", fmt.Sprintf("/orgs/%s/projects", args[0]), map[string]any{"name": args[1]})
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var apiKeyCmd = &cobra.Command{
	Use:   "api-key",
	Short: "Manage API keys",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create [project-id]",
	Short: "Issue a new API key for a project (secret is shown once)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _, err := doRequest("POST", fmt.Sprintf("/projects/%s/api-keys", args[0]), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

func init() {
	rootCmd.AddCommand(orgCmd)
	orgCmd.AddCommand(orgCreateCmd)

	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectCreateCmd)

	rootCmd.AddCommand(apiKeyCmd)
	apiKeyCmd.AddCommand(apiKeyCreateCmd)
}
