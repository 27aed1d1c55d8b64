package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/onnwee/timeguard/internal/apperr"
)

// ExportFormat defines supported export formats.
type ExportFormat string

const (
	// ExportFormatCSV exports logs as comma-separated values.
	ExportFormatCSV ExportFormat = "csv"
	// ExportFormatJSON exports logs as JSON array.
	ExportFormatJSON ExportFormat = "json"
)

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == ExportFormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// ParseExportFormat accepts "csv" or "json"; empty means json.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatJSON, "":
		return ExportFormatJSON, nil
	}
	return "", fmt.Errorf("%w: unsupported export format: %s", apperr.ErrValidation, s)
}

// ExportOptions configures audit log export parameters.
type ExportOptions struct {
	Format ExportFormat
	Filter Filter
}

// ExportLogs exports audit records matching opts, newest first.
func ExportLogs(ctx context.Context, repo Repository, opts ExportOptions) ([]byte, error) {
	if opts.Format != ExportFormatCSV && opts.Format != ExportFormatJSON {
		return nil, fmt.Errorf("%w: unsupported export format: %s", apperr.ErrValidation, opts.Format)
	}

	records, err := repo.List(ctx, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}

	if opts.Format == ExportFormatCSV {
		return exportToCSV(records)
	}
	return exportToJSON(records)
}

// exportToCSV exports audit logs to CSV format.
func exportToCSV(records []*Record) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	header := []string{
		"ID",
		"Seq",
		"Timestamp (UTC)",
		"Actor ID",
		"Action",
		"Table",
		"Record ID",
		"Old Data",
		"New Data",
		"IP Address",
		"Request ID",
		"Previous Hash",
		"Hash",
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.ID,
			strconv.FormatInt(r.Seq, 10),
			r.CreatedAt.UTC().Format(time.RFC3339Nano),
			deref(r.ActorID),
			string(r.Action),
			r.TableName,
			r.RecordID,
			string(r.OldData),
			string(r.NewData),
			deref(r.IPAddress),
			r.RequestID,
			r.PrevHash,
			r.Hash,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// exportToJSON exports audit logs to JSON format.
func exportToJSON(records []*Record) ([]byte, error) {
	if records == nil {
		records = []*Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}
