package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage devices",
}

var deviceCreateCmd = &cobra.Command{
	Use:   "create [project-id] [external-id] [name]",
	Short: "Register a device under a project",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tagsFlag, _ := cmd.Flags().GetString("tags")
		body := map[string]any{
			"external_id": args[1],
			"name":        args[2],
		}
		if tagsFlag != "" {
			body["tags"] = strings.Split(tagsFlag, ",")
		}
		raw, _, err := doRequest("POST", fmt.Sprintf("/projects/%s/devices", args[0]), body)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var deviceListCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List devices in a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _, err := doRequest("GET", fmt.Sprintf("/projects/%s/devices", args[0]), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var deviceGetCmd = &cobra.Command{
	Use:   "get [project-id] [device-id]",
	Short: "Fetch a device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _, err := doRequest("GET", fmt.Sprintf("/projects/%s/devices/%s", args[0], args[1]), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var deviceDeleteCmd = &cobra.Command{
	Use:   "delete [project-id] [device-id]",
	Short: "Delete a device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, status, err := doRequest("DELETE", fmt.Sprintf("/projects/%s/devices/%s", args[0], args[1]), nil)
		if err != nil {
			return err
		}
		fmt.Printf("deleted (status %d)\n", status)
		return nil
	},
}

var deviceTagsCmd = &cobra.Command{
	Use:   "tags [project-id] [device-id] [tag,tag,...]",
	Short: "Replace, add, or remove a device's tags",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		method := map[string]string{"replace": "PATCH", "add": "POST", "remove": "DELETE"}[mode]
		if method == "" {
			return fmt.Errorf("invalid --mode %q (want replace, add, or remove)", mode)
		}
		body := map[string]any{"tags": strings.Split(args[2], ",")}
		raw, _, err := doRequest(method, fmt.Sprintf("/projects/%s/devices/%s/tags", args[0], args[1]), body)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

func init() {
	rootCmd.AddCommand(deviceCmd)
	deviceCmd.AddCommand(deviceCreateCmd)
	deviceCmd.AddCommand(deviceListCmd)
	deviceCmd.AddCommand(deviceGetCmd)
	deviceCmd.AddCommand(deviceDeleteCmd)
	deviceCmd.AddCommand(deviceTagsCmd)

	deviceCreateCmd.Flags().String("tags", "", "comma-separated tags")
	deviceTagsCmd.Flags().String("mode", "replace", "replace, add, or remove")
}
