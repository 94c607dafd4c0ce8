// Package output renders API responses for the CLI.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Format represents an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formatter renders a JSON document.
type Formatter interface {
	Format(data json.RawMessage) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Render marshals v to JSON (unless it already is) and formats it.
func Render(format Format, v any) (string, error) {
	var data json.RawMessage
	switch val := v.(type) {
	case json.RawMessage:
		data = val
	case []byte:
		data = val
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode output: %w", err)
		}
		data = encoded
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = json.RawMessage("null")
	}
	return NewFormatter(format).Format(data)
}

func decode(data json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	return v, nil
}
