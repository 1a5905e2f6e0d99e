package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Ingest and inspect device telemetry",
}

var telemetrySendCmd = &cobra.Command{
	Use:   "send [device-external-id] [metric] [value]",
	Short: "Ingest a single telemetry event as a one-event batch",
	Long: `Sends {"device_external_id":..., "events":[{"ts":now,"data":{metric:value}}]}
against POST /telemetry. For multi-event batches, write a full batch JSON
document to a file and pass its path to "telemetry send-batch" instead.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := parseJSONValue(args[2])
		if err != nil {
			return fmt.Errorf("invalid value: %w", err)
		}
		body := map[string]any{
			"device_external_id": args[0],
			"events": []map[string]any{{
				"ts":   time.Now().UTC().Format(time.RFC3339Nano),
				"data": map[string]any{args[1]: value},
			}},
		}
		raw, _, err := doRequest("POST", "/telemetry", body)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var telemetrySendBatchCmd = &cobra.Command{
	Use:   "send-batch [batch-json-file]",
	Short: "Ingest a full TelemetryBatchIn document read from a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readFile(args[0])
		if err != nil {
			return err
		}
		var body any
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("invalid batch JSON: %w", err)
		}
		raw, _, err := doRequest("POST", "/telemetry", body)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var telemetryRecentCmd = &cobra.Command{
	Use:   "recent [device-id]",
	Short: "List recent telemetry events for a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		raw, _, err := doRequest("GET", fmt.Sprintf("/telemetry/devices/%s/telemetry?limit=%d", args[0], limit), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var telemetryLatestCmd = &cobra.Command{
	Use:   "latest [device-id]",
	Short: "Fetch the most recent telemetry event for a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _, err := doRequest("GET", fmt.Sprintf("/telemetry/devices/%s/telemetry/latest", args[0]), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

var telemetrySinceCmd = &cobra.Command{
	Use:   "since [device-id] [since-ts]",
	Short: "List telemetry events for a device since an ISO-8601 timestamp",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _, err := doRequest("GET", fmt.Sprintf("/telemetry/devices/%s/telemetry/since?since_ts=%s", args[0], args[1]), nil)
		if err != nil {
			return err
		}
		return printRaw(raw)
	},
}

func init() {
	rootCmd.AddCommand(telemetryCmd)
	telemetryCmd.AddCommand(telemetrySendCmd)
	telemetryCmd.AddCommand(telemetrySendBatchCmd)
	telemetryCmd.AddCommand(telemetryRecentCmd)
	telemetryCmd.AddCommand(telemetryLatestCmd)
	telemetryCmd.AddCommand(telemetrySinceCmd)

	telemetryRecentCmd.Flags().Int("limit", 50, "max events to return")
}
