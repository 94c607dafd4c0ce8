package output

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter converts the document to YAML.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(data json.RawMessage) (string, error) {
	v, err := decode(data)
	if err != nil {
		return "", err
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}
