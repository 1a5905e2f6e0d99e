package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	serverAddr string
	apiKey     string
	timeout    time.Duration
	outputJSON bool
	prettyJSON bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ridgelinectl",
	Short: "ridgeline CLI - manage devices, rules, and webhooks for the telemetry platform",
	Long: `ridgelinectl is a command line tool for interacting with the ridgeline
telemetry ingestion and alerting API.

Use it to provision orgs/projects/devices, manage threshold rules, send
telemetry, and inspect alerts and webhook deliveries.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ridgelinectl.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "API base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (overrides RIDGELINE_API_KEY env var)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&prettyJSON, "pretty", false, "use jq for pretty JSON formatting (requires jq)")

	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))
	viper.BindPFlag("api-key", rootCmd.PersistentFlags().Lookup("api-key"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ridgelinectl")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	if !rootCmd.PersistentFlags().Changed("server") {
		if s := viper.GetString("server"); s != "" {
			serverAddr = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("timeout") {
		if d := viper.GetDuration("timeout"); d > 0 {
			timeout = d
		}
	}
	if !rootCmd.PersistentFlags().Changed("json") {
		outputJSON = viper.GetBool("json")
	}
	if !rootCmd.PersistentFlags().Changed("pretty") {
		prettyJSON = viper.GetBool("pretty")
	}
	if !rootCmd.PersistentFlags().Changed("api-key") {
		if k := viper.GetString("api-key"); k != "" {
			apiKey = k
		} else if k := os.Getenv("RIDGELINE_API_KEY"); k != "" {
			apiKey = k
		}
	}
}

// apiError mirrors the {"detail": "..."} shape every API error response uses.
type apiError struct {
	Detail string `json:"detail"`
}

// doRequest issues an HTTP request against the configured server, decoding
// a non-2xx response into its detail string.
func doRequest(method, path string, body any) ([]byte, int, error) {
	client := &http.Client{Timeout: timeout}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(serverAddr, "/")+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr apiError
		if jsonErr := json.Unmarshal(respBody, &apiErr); jsonErr == nil && apiErr.Detail != "" {
			return respBody, resp.StatusCode, fmt.Errorf("%s: %s", resp.Status, apiErr.Detail)
		}
		return respBody, resp.StatusCode, fmt.Errorf("%s", resp.Status)
	}

	return respBody, resp.StatusCode, nil
}

// decodeInto unmarshals raw JSON into dst, returning a wrapped error on
// malformed server responses.
func decodeInto(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseJSONValue parses a single scalar/object/array argument as JSON,
// falling back to treating it as a bare string (so `temperature 85` and
// `temperature '"unreachable"'` both work without quoting numbers).
func parseJSONValue(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v, nil
	}
	return s, nil
}

// readFile reads an entire file into memory; broken out so batch-ingest
// commands aren't tied to os.ReadFile directly.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// printRaw decodes a raw JSON response body into a generic value and
// renders it via printOutput, the common path for every subcommand that
// just forwards the API's response to the user.
func printRaw(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := decodeInto(raw, &v); err != nil {
		return err
	}
	printOutput(v)
	return nil
}

func checkJQAvailable() bool {
	_, err := exec.LookPath("jq")
	return err == nil
}

func formatWithJQ(jsonData []byte) (string, error) {
	if !checkJQAvailable() {
		return "", fmt.Errorf("jq not found in PATH")
	}

	cmd := exec.Command("jq", ".")
	cmd.Stdin = bytes.NewReader(jsonData)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("jq formatting failed: %s", stderr.String())
	}
	return out.String(), nil
}

// printOutput prints v as either pretty-printed JSON or a Go %+v dump,
// matching --json/--pretty.
func printOutput(v any) {
	if !outputJSON {
		fmt.Printf("%+v\n", v)
		return
	}

	var jsonData []byte
	var err error
	if prettyJSON {
		jsonData, err = json.Marshal(v)
	} else {
		jsonData, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling to JSON: %v\n", err)
		return
	}

	if prettyJSON {
		if formatted, jqErr := formatWithJQ(jsonData); jqErr == nil {
			fmt.Print(formatted)
			return
		} else {
			fmt.Fprintf(os.Stderr, "Warning: %v, falling back to standard formatting\n", jqErr)
			jsonData, _ = json.MarshalIndent(v, "", "  ")
		}
	}
	fmt.Println(string(jsonData))
}
