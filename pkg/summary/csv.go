package summary

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/Sternrassler/bulkfetch/pkg/logging"
)

// RunFileWriter atomically writes a named file. *store.FileStore satisfies it.
type RunFileWriter interface {
	WriteRunFile(name string, write func(w io.Writer) error) error
}

// CSVWriter writes the table as a CSV file with a header row.
type CSVWriter struct {
	files RunFileWriter
	name  string
}

// NewCSVWriter creates a writer that replaces name through files.
func NewCSVWriter(files RunFileWriter, name string) *CSVWriter {
	return &CSVWriter{files: files, name: name}
}

// Write replaces the CSV file with rows.
func (w *CSVWriter) Write(ctx context.Context, rows []Row) error {
	err := w.files.WriteRunFile(w.name, func(out io.Writer) error {
		return EncodeCSV(out, rows)
	})
	if err != nil {
		return fmt.Errorf("write summary csv: %w", err)
	}

	rowsWritten.WithLabelValues("csv").Add(float64(len(rows)))
	logger := logging.NewLogger(logging.ComponentSummary)
	logger.Info().
		Str("file", w.name).
		Int("rows", len(rows)).
		Msg("Summary CSV written")
	return nil
}

// EncodeCSV writes Header and every row to out.
func EncodeCSV(out io.Writer, rows []Row) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
