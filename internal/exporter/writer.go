package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"kpianalyzer/internal/config"
	"kpianalyzer/pkg/contracts/domain"
)

// Writer renders a final table in one output format.
type Writer interface {
	Write(w io.Writer, t *domain.Table) error
	ContentType() string
	Extension() string
}

// ForFormat returns the writer for an output format.
func ForFormat(f Format) (Writer, error) {
	switch f {
	case FormatXLSX:
		return NewXLSXWriter(), nil
	case FormatCSV:
		return NewCSVWriter(), nil
	case FormatJSON:
		return NewJSONWriter(), nil
	}
	return nil, fmt.Errorf("unsupported output format %q", f)
}

// JSONWriter renders the final table as a JSON document.
type JSONWriter struct{}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter() *JSONWriter { return &JSONWriter{} }

// ContentType implements Writer.
func (w *JSONWriter) ContentType() string { return "application/json" }

// Extension implements Writer.
func (w *JSONWriter) Extension() string { return ".json" }

// jsonRow keeps missing values as null.
type jsonRow struct {
	Entity  string              `json:"entity"`
	Segment string              `json:"segment"`
	KPI     string              `json:"kpi"`
	Values  map[string]*float64 `json:"values"`
	Remark  string              `json:"remark"`
}

// Write encodes the header, date labels and rows.
func (w *JSONWriter) Write(out io.Writer, t *domain.Table) error {
	rows := make([]jsonRow, 0, len(t.Rows))
	for _, r := range t.Rows {
		values := make(map[string]*float64, len(t.DateLabels))
		for i, label := range t.DateLabels {
			if v := r.Values[i]; v.Valid {
				n := v.Number
				values[label] = &n
			} else {
				values[label] = nil
			}
		}
		rows = append(rows, jsonRow{Entity: r.Entity, Segment: r.Segment, KPI: r.KPI, Values: values, Remark: r.Remark})
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Header     []string  `json:"header"`
		DateLabels []string  `json:"date_labels"`
		Rows       []jsonRow `json:"rows"`
	}{t.Header, t.DateLabels, rows})
}

// FileExporter saves rendered tables under the configured output directory.
type FileExporter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewFileExporter creates a file exporter.
func NewFileExporter(paths *config.Paths, logger *slog.Logger) *FileExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileExporter{paths: paths, logger: logger.With(slog.String("component", "exporter"))}
}

// Save renders the table with w and writes it to name. Relative names resolve
// against the output directory; the writer's extension is added when missing.
// It returns the full path written.
func (e *FileExporter) Save(name string, w Writer, t *domain.Table) (string, error) {
	if filepath.Ext(name) == "" {
		name += w.Extension()
	}
	fullPath := e.paths.GetOutputPath(name)

	e.logger.Info("Writing output file",
		slog.String("file_path", name),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(t.Rows)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if err := w.Write(file, t); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return fullPath, nil
}
