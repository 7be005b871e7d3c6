package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"threatmon/cmd/analyzer"
	"threatmon/db"

	"github.com/spf13/cobra"
)

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded dispatches as CSV or JSON",
	Long: `Export recorded dispatches, newest first, as CSV or JSON.
Each row carries the log text that was sent, the response and its threat verdict.
Output goes to stdout unless --output is given.`,
	Args: cobra.NoArgs,
	RunE: runHistoryExport,
}

var (
	exportFormat string
	exportOutput string
)

func init() {
	historyCmd.AddCommand(historyExportCmd)

	historyExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "export format: csv or json")
	historyExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "file to write (default stdout)")
}

type exportedDispatch struct {
	ID           string            `json:"id"`
	SentAt       time.Time         `json:"sentAt"`
	Endpoint     string            `json:"endpoint"`
	Log          string            `json:"log"`
	StatusCode   int               `json:"status"`
	DurationMS   int64             `json:"durationMs"`
	Error        string            `json:"error,omitempty"`
	ResponseBody string            `json:"responseBody"`
	Verdict      *analyzer.Verdict `json:"verdict,omitempty"`
}

type exportDocument struct {
	ExportedAt time.Time          `json:"exportedAt"`
	Total      int                `json:"total"`
	Dispatches []exportedDispatch `json:"dispatches"`
}

var csvHeader = []string{
	"Timestamp", "ID", "Log", "Status", "Threat Type", "Confidence", "AI Status", "Response Body",
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("unknown export format %q, use csv or json", exportFormat)
	}

	database, err := openHistory()
	if err != nil {
		return err
	}
	defer database.Close()

	dispatches, err := db.ListDispatches(database, 0)
	if err != nil {
		return fmt.Errorf("error listing dispatches: %w", err)
	}

	if len(dispatches) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No dispatches to export.")
		return nil
	}

	rows := make([]exportedDispatch, 0, len(dispatches))
	for _, d := range dispatches {
		rows = append(rows, toExported(d))
	}

	out := cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("error creating export file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if exportFormat == "csv" {
		err = writeCSV(out, rows)
	} else {
		err = writeJSON(out, rows)
	}
	if err != nil {
		return fmt.Errorf("error writing export: %w", err)
	}

	if exportOutput != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d dispatches to %s\n", len(rows), exportOutput)
	}
	return nil
}

func toExported(d db.Dispatch) exportedDispatch {
	e := exportedDispatch{
		ID:           d.ID,
		SentAt:       d.SentAt.UTC(),
		Endpoint:     d.Endpoint,
		Log:          logText(d.Payload),
		StatusCode:   d.StatusCode,
		DurationMS:   d.Duration.Milliseconds(),
		Error:        d.Error,
		ResponseBody: d.ResponseBody,
	}
	if v, ok := analyzer.ParseVerdict(d.ResponseBody); ok {
		e.Verdict = v
	}
	return e
}

// logText pulls the log description back out of a stored payload.
func logText(payload string) string {
	var req analyzer.AnalysisRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return payload
	}
	if len(req.Messages) == 0 || len(req.Messages[0].Content) == 0 {
		return payload
	}
	return req.Messages[0].Content[0].Text
}

func writeJSON(w io.Writer, rows []exportedDispatch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exportDocument{
		ExportedAt: time.Now().UTC(),
		Total:      len(rows),
		Dispatches: rows,
	})
}

func writeCSV(w io.Writer, rows []exportedDispatch) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range rows {
		var threatType, confidence, status string
		switch {
		case r.Verdict != nil:
			threatType = r.Verdict.Type
			confidence = strconv.FormatFloat(r.Verdict.Confidence, 'f', -1, 64)
			status = r.Verdict.Label()
		case r.Error != "":
			status = "ERROR"
		}

		record := []string{
			r.SentAt.Format(time.RFC3339),
			r.ID,
			r.Log,
			strconv.Itoa(r.StatusCode),
			threatType,
			confidence,
			status,
			r.ResponseBody,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
