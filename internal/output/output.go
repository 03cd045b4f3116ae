package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mj1618/uitransfer/internal/model"
	"github.com/mj1618/uitransfer/internal/transfer"
)

// Format represents the output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// OutputFormat is the current output format, set by the root command's --format flag.
var OutputFormat Format = FormatYAML

// PrettyOutput enables pretty-printing for JSON output.
var PrettyOutput bool

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatYAML, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported output format: %s (use yaml or json)", s)
}

// SnapshotResult is the output of commands that print a decoded tree.
type SnapshotResult struct {
	Source  string          `yaml:"source,omitempty" json:"source,omitempty"`
	TS      int64           `yaml:"ts"               json:"ts"`
	Stats   *transfer.Stats `yaml:"stats,omitempty"  json:"stats,omitempty"`
	Windows []*model.Window `yaml:"windows"          json:"windows"`
}

// FlatResult is the output when --flat is used.
type FlatResult struct {
	Source string           `yaml:"source,omitempty" json:"source,omitempty"`
	TS     int64            `yaml:"ts"               json:"ts"`
	Stats  *transfer.Stats  `yaml:"stats,omitempty"  json:"stats,omitempty"`
	Nodes  []model.FlatNode `yaml:"nodes"            json:"nodes"`
}

// DiffResult is the output of a tree comparison.
type DiffResult struct {
	TS   int64          `yaml:"ts"   json:"ts"`
	Diff model.TreeDiff `yaml:"diff" json:"diff"`
}

// Print serializes v to stdout in the current output format.
func Print(v interface{}) error {
	return Fprint(os.Stdout, v)
}

// Fprint serializes v to w in the current output format.
func Fprint(w io.Writer, v interface{}) error {
	switch OutputFormat {
	case FormatJSON:
		return WriteJSON(w, v, PrettyOutput)
	case FormatYAML:
		return WriteYAML(w, v)
	default:
		return fmt.Errorf("unsupported output format: %s", OutputFormat)
	}
}

// WriteJSON serializes v as JSON, single-line unless pretty.
func WriteJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

// WriteYAML serializes v as YAML.
func WriteYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return enc.Close()
}
