package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var helpCmd = &cobra.Command{
	Use:   "help",
	Short: "Show help for threatmon commands",
	Long:  `Display detailed help information for all available threatmon commands.`,
	// Runs without loading config.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	RunE:             runHelp,
}

func init() {
	rootCmd.AddCommand(helpCmd)
}

func runHelp(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), `
Threatmon - HTTP Log Analysis Client

Usage: threatmon
  Sends a sample GET log line to the analysis endpoint and prints
  the status code and response body.

Available Commands:
  analyze              Describe an HTTP request and send it for analysis
    Usage: threatmon analyze -X POST -u https://example.com/login -d '{"user":"x"}'
    Skips excluded domains, unmonitored methods and the endpoint itself.
    Without --url, prompts for method, URL and body.

  history              Inspect recorded dispatches
    Usage: threatmon history [list|show ID|export|delete ID|clear]
    Dispatches are recorded with --record or history.enabled in config.
    export writes CSV or JSON: threatmon history export -f csv -o threats.csv

  config               Configuration commands
    Usage: threatmon config [command]
    Available subcommands:
      show             Print the effective configuration
      endpoint [url]   Configure the analysis endpoint
      db [path]        Configure history database location

  help                 Show this help message
    Usage: threatmon help

Global Flags:
  --config PATH        Config file to use
  --endpoint URL       Override the analysis endpoint
  --timeout DURATION   Request timeout (default: none)
  --record             Record the dispatch in the local history
  -v, --verbose        Log debug output to stderr`)
	return nil
}
