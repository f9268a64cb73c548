package notify

import (
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/induslabs/pulse/collector"
)

// csvHeader is the stable column order snapshot consumers rely on.
var csvHeader = []string{
	"id", "author_name", "author_handle", "text", "url",
	"source_type", "source_detail", "category", "created_at", "collected_at",
}

// CSVExporter rewrites a snapshot file with each run's new items. The file
// is truncated every run, including runs that found nothing, so a stale
// snapshot never outlives the run that produced it.
type CSVExporter struct {
	Path   string
	Logger *slog.Logger
}

// NewCSVExporter creates the snapshot channel. An empty path falls back to
// the conventional data/feedback_latest.csv.
func NewCSVExporter(path string, logger *slog.Logger) *CSVExporter {
	if path == "" {
		path = "data/feedback_latest.csv"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVExporter{Path: path, Logger: logger}
}

func (e *CSVExporter) Name() string { return "csv" }

func (e *CSVExporter) Notify(ctx context.Context, items []*collector.Item) error {
	if err := os.MkdirAll(filepath.Dir(e.Path), 0o755); err != nil {
		return &ErrDeliveryFailed{Channel: "csv", Cause: err}
	}
	f, err := os.Create(e.Path)
	if err != nil {
		return &ErrDeliveryFailed{Channel: "csv", Cause: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return &ErrDeliveryFailed{Channel: "csv", Cause: err}
	}
	for _, it := range items {
		rec := []string{
			it.ID, it.AuthorName, it.AuthorHandle, it.Text, it.URL,
			it.SourceType, it.SourceDetail, it.Category, it.CreatedAt, it.CollectedAt,
		}
		if err := w.Write(rec); err != nil {
			return &ErrDeliveryFailed{Channel: "csv", Cause: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &ErrDeliveryFailed{Channel: "csv", Cause: err}
	}

	e.Logger.Info("notify: csv snapshot written", "path", e.Path, "items", len(items))
	return nil
}
