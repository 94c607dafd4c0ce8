package output

import (
	"bytes"
	"encoding/json"
)

// JSONFormatter re-indents the document.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) Format(data json.RawMessage) (string, error) {
	var buf bytes.Buffer
	var err error
	if f.Indent {
		err = json.Indent(&buf, data, "", "  ")
	} else {
		err = json.Compact(&buf, data)
	}
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
