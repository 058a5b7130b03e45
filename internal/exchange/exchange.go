// Package exchange converts a whole task collection to and from portable
// document formats.
package exchange

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dohr-michael/taskflow/internal/storage"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

// Format names a document format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

// CSVHeader is the fixed first row of a CSV export.
var CSVHeader = []string{"ID", "Title", "Description", "Status", "Priority", "Tags", "Created", "Updated", "Due", "Completed"}

// ParseFormat accepts json, csv, yaml and yml, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatFromPath guesses the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return FormatJSON
}

// Export writes c to w. JSON output is the same document the file backend stores.
func Export(w io.Writer, c tasks.Collection, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return exportCSV(w, c)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

func exportCSV(w io.Writer, c tasks.Collection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, t := range sorted(c) {
		row := []string{
			t.ID,
			t.Title,
			t.Description,
			string(t.Status),
			string(t.Priority),
			strings.Join(t.Tags, ";"),
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.UpdatedAt.UTC().Format(time.RFC3339),
			formatOptional(t.DueDate),
			formatOptional(t.CompletedAt),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// sorted lists tasks oldest first so exports are stable.
func sorted(c tasks.Collection) []tasks.Task {
	list := make([]tasks.Task, 0, len(c))
	for _, t := range c {
		list = append(list, *t)
	}
	slices.SortFunc(list, func(a, b tasks.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return list
}

// Import reads a whole collection from r. CSV is export-only.
func Import(r io.Reader, f Format) (tasks.Collection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	switch f {
	case FormatJSON:
		return storage.DecodeJSON("import", data)
	case FormatYAML:
		var c tasks.Collection
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, &storage.SerializationError{Path: "import", Err: err}
		}
		return storage.Normalize(c)
	default:
		return nil, fmt.Errorf("%w for import: %q", ErrUnsupportedFormat, f)
	}
}
