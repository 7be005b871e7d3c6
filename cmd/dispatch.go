package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"threatmon/cmd/analyzer"
	"threatmon/db"
)

// dispatch sends text for analysis and prints the status and raw body.
// HTTP error statuses are printed like any other response; only a
// transport failure is returned.
func dispatch(ctx context.Context, out io.Writer, text string) error {
	client := analyzer.New(settings.Endpoint, settings.Timeout)
	req := analyzer.NewRequest(text)

	resp, sendErr := client.Send(ctx, req)

	if settings.History.Enabled {
		if err := recordDispatch(client.Endpoint(), req, resp, sendErr); err != nil {
			slog.Warn("could not record dispatch", "error", err)
		}
	}

	if sendErr != nil {
		return sendErr
	}

	fmt.Fprintf(out, "Status code: %d\n", resp.StatusCode)
	fmt.Fprintf(out, "Response body: %s\n", resp.Body)
	return nil
}

func recordDispatch(endpoint string, req analyzer.AnalysisRequest, resp *analyzer.Response, sendErr error) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	database, err := openHistory()
	if err != nil {
		return err
	}
	defer database.Close()

	d := &db.Dispatch{
		Endpoint: endpoint,
		Payload:  string(payload),
	}
	if sendErr != nil {
		d.Error = sendErr.Error()
	} else {
		d.StatusCode = resp.StatusCode
		d.ResponseBody = resp.Body
		d.Duration = resp.Duration
	}

	if err := db.CreateDispatch(database, d, settings.History.Keep); err != nil {
		return err
	}
	slog.Debug("dispatch recorded", "id", d.ID)
	return nil
}

func openHistory() (*sql.DB, error) {
	dbPath, err := settings.HistoryPath()
	if err != nil {
		return nil, fmt.Errorf("getting history path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	database, err := db.InitDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing history database: %w", err)
	}
	return database, nil
}
