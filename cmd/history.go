package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"threatmon/cmd/analyzer"
	"threatmon/db"

	"github.com/dustin/go-humanize"
	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded dispatches",
	Long: `Inspect dispatches recorded in the local history database.
Dispatches are only recorded when --record is passed or history.enabled is set.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded dispatches",
	Long:  `Display the most recent dispatches, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one dispatch",
	Long: `Display a recorded dispatch in full. The id may be any unique prefix.
JSON payloads and response bodies are pretty-printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a recorded dispatch",
	Long:  `Delete a recorded dispatch by its id or a unique prefix of it.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded dispatch",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

var (
	historyLimit int
	clearYes     bool
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "show at most n dispatches")
	historyClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")
}

const shortIDLen = 8

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	database, err := openHistory()
	if err != nil {
		return err
	}
	defer database.Close()

	dispatches, err := db.ListDispatches(database, historyLimit)
	if err != nil {
		return fmt.Errorf("error listing dispatches: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(dispatches) == 0 {
		fmt.Fprintln(out, "No dispatches recorded.")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Sent", "Status", "Result", "Verdict", "Body", "Took"})
	table.SetBorder(false)
	table.SetColumnSeparator("  ")

	for _, d := range dispatches {
		table.Append([]string{
			shortID(d.ID),
			humanize.Time(d.SentAt),
			strconv.Itoa(d.StatusCode),
			analyzer.StatusDescription(d.StatusCode),
			verdictText(d.ResponseBody),
			humanize.Bytes(uint64(len(d.ResponseBody))),
			d.Duration.String(),
		})
	}

	table.Render()
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	database, err := openHistory()
	if err != nil {
		return err
	}
	defer database.Close()

	d, err := db.GetDispatch(database, args[0])
	if err != nil {
		return fmt.Errorf("error retrieving dispatch: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", d.ID)
	fmt.Fprintf(out, "Sent:      %s (%s)\n", d.SentAt.Format("2006-01-02 15:04:05"), humanize.Time(d.SentAt))
	fmt.Fprintf(out, "Endpoint:  %s\n", d.Endpoint)
	fmt.Fprintf(out, "Status:    %d %s\n", d.StatusCode, analyzer.StatusDescription(d.StatusCode))
	fmt.Fprintf(out, "Duration:  %s\n", d.Duration)
	if d.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", d.Error)
	}
	if v, ok := analyzer.ParseVerdict(d.ResponseBody); ok {
		fmt.Fprintf(out, "Verdict:   %s\n", v)
		if v.Severity != "" {
			fmt.Fprintf(out, "Severity:  %s\n", v.Severity)
		}
		if v.Description != "" {
			fmt.Fprintf(out, "Details:   %s\n", v.Description)
		}
		if v.Recommendation != "" {
			fmt.Fprintf(out, "Action:    %s\n", v.Recommendation)
		}
	}
	fmt.Fprintf(out, "\nPayload:\n%s\n", formatBody(d.Payload))
	fmt.Fprintf(out, "Response body:\n%s\n", formatBody(d.ResponseBody))
	return nil
}

// verdictText summarizes the threat verdict in a response body, or "-" when
// the body carries none.
func verdictText(body string) string {
	if v, ok := analyzer.ParseVerdict(body); ok {
		return v.String()
	}
	return "-"
}

// formatBody indents JSON for reading; anything else is shown as stored.
func formatBody(body string) string {
	if body == "" {
		return "(empty)"
	}
	if !json.Valid([]byte(body)) {
		return body
	}
	return strings.TrimSuffix(string(pretty.Pretty([]byte(body))), "\n")
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	database, err := openHistory()
	if err != nil {
		return err
	}
	defer database.Close()

	d, err := db.GetDispatch(database, args[0])
	if err != nil {
		return fmt.Errorf("error retrieving dispatch: %w", err)
	}

	if err := db.DeleteDispatch(database, d.ID); err != nil {
		return fmt.Errorf("error deleting dispatch: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Dispatch %s deleted successfully!\n", shortID(d.ID))
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		confirmPrompt := promptui.Prompt{
			Label:     "Delete all recorded dispatches",
			IsConfirm: true,
		}
		if _, err := confirmPrompt.Run(); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "History not cleared.")
			return nil
		}
	}

	database, err := openHistory()
	if err != nil {
		return err
	}
	defer database.Close()

	removed, err := db.ClearDispatches(database)
	if err != nil {
		return fmt.Errorf("error clearing history: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d dispatches.\n", removed)
	return nil
}
