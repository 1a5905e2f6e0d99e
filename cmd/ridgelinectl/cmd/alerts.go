package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Inspect alerts",
}

var alertListDeviceCmd = &cobra.Command{
	Use:   "list-device [device-id]",
	Short: "List alerts for a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		raw, _, err := doRequest("GET", fmt.Sprintf("/devices/%s/alerts?limit=%d", args[0], limit), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var alertListProjectCmd = &cobra.Command{
	Use:   "list-project [project-id]",
	Short: "List alerts for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		raw, _, err := doRequest("GET", fmt.Sprintf("/projects/%s/alerts?limit=%d", args[0], limit), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

func init() {
	rootCmd.AddCommand(alertCmd)
	alertCmd.AddCommand(alertListDeviceCmd)
	alertCmd.AddCommand(alertListProjectCmd)

	alertListDeviceCmd.Flags().Int("limit", 50, "max alerts to return")
	alertListProjectCmd.Flags().Int("limit", 50, "max alerts to return")
}
