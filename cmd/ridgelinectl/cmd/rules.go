package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage threshold rules",
}

var ruleCreateCmd = &cobra.Command{
	Use:   "create [project-id] [name] [metric] [operator] [threshold]",
	Short: "Create a k-of-n threshold rule",
	Long: `operator is one of >, >=, <, <=. window-n/required-k/cooldown and
scope/tag are set via flags, e.g.:

  ridgelinectl rule create 1 "hot device" temperature '>' 80 \
      --window-n 5 --required-k 3 --cooldown 300 --scope ALL`,
	Args: cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, err := strconv.ParseFloat(args[4], 64)
		if err != nil {
			return fmt.Errorf("invalid threshold: %w", err)
		}
		windowN, _ := cmd.Flags().GetInt("window-n")
		requiredK, _ := cmd.Flags().GetInt("required-k")
		cooldown, _ := cmd.Flags().GetInt("cooldown")
		enabled, _ := cmd.Flags().GetBool("enabled")
		scope, _ := cmd.Flags().GetString("scope")
		tag, _ := cmd.Flags().GetString("tag")

		body := map[string]any{
			"name":             args[1],
			"metric":           args[2],
			"operator":         args[3],
			"threshold":        threshold,
			"window_n":         windowN,
			"required_k":       requiredK,
			"cooldown_seconds": cooldown,
			"enabled":          enabled,
			"scope":            scope,
		}
		if tag != "" {
			body["tag"] = tag
		}

		raw, _, err := doRequest("POST", fmt.Sprintf("/projects/%s/rules", args[0]), body)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var ruleListCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List rules in a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fmt.Sprintf("/projects/%s/rules", args[0])
		if enabledOnly, _ := cmd.Flags().GetBool("enabled-only"); enabledOnly {
			path += "/enabled"
		}
		raw, _, err := doRequest("GET", path, nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var ruleGetCmd = &cobra.Command{
	Use:   "get [rule-id]",
	Short: "Fetch a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _, err := doRequest("GET", fmt.Sprintf("/rules/%s", args[0]), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var ruleDeleteCmd = &cobra.Command{
	Use:   "delete [rule-id]",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, status, err := doRequest("DELETE", fmt.Sprintf("/rules/%s", args[0]), nil)
		if err != nil {
			return err
		}
		fmt.Printf("deleted (status %d)\n", status)
		return nil
	},
}

var ruleBindCmd = &cobra.Command{
	Use:   "bind [rule-id] [device-id,device-id,...]",
	Short: "Bind a rule with scope=EXPLICIT to a set of devices",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := strings.Split(args[1], ",")
		deviceIDs := make([]int64, 0, len(ids))
		for _, id := range ids {
			n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid device id %q: %w", id, err)
			}
			deviceIDs = append(deviceIDs, n)
		}
		_, status, err := doRequest("POST", fmt.Sprintf("/rules/%s/devices", args[0]), map[string]any{"device_ids": deviceIDs})
		if err != nil {
			return err
		}
		fmt.Printf("bound (status %d)\n", status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ruleCmd)
	ruleCmd.AddCommand(ruleCreateCmd)
	ruleCmd.AddCommand(ruleListCmd)
	ruleCmd.AddCommand(ruleGetCmd)
	ruleCmd.AddCommand(ruleDeleteCmd)
	ruleCmd.AddCommand(ruleBindCmd)

	ruleCreateCmd.Flags().Int("window-n", 5, "window size (n)")
	ruleCreateCmd.Flags().Int("required-k", 1, "required matches (k)")
	ruleCreateCmd.Flags().Int("cooldown", 0, "cooldown seconds between alerts")
	ruleCreateCmd.Flags().Bool("enabled", true, "rule is enabled")
	ruleCreateCmd.Flags().String("scope", "ALL", "ALL, EXPLICIT, or TAG")
	ruleCreateCmd.Flags().String("tag", "", "tag to match, required when --scope=TAG")

	ruleListCmd.Flags().Bool("enabled-only", false, "list only enabled rules")
}
