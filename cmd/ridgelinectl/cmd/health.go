package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check liveness of the ridgeline API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		checkDB, _ := cmd.Flags().GetBool("db")
		path := "/health"
		if checkDB {
			path = "/health/db"
		}

		raw, status, err := doRequest("GET", path, nil)
		if err != nil {
			return err
		}
		if outputJSON {
			var v any
			if decodeErr := decodeInto(raw, &v); decodeErr == nil {
				printOutput(v)
				return nil
			}
		}
		fmt.Printf("%s: %d\n", path, status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().Bool("db", false, "check database connectivity via /health/db instead of /health")
}
