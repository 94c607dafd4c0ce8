package output

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// leadingColumns are shown first when present, in this order.
var leadingColumns = []string{"ID", "Name", "Title", "State", "scope", "verb"}

// TableFormatter renders lists of objects as rows and single objects as
// field/value pairs. Scalars are printed as-is.
type TableFormatter struct{}

func (f *TableFormatter) Format(data json.RawMessage) (string, error) {
	v, err := decode(data)
	if err != nil {
		return "", err
	}

	switch val := v.(type) {
	case []any:
		return renderList(val), nil
	case map[string]any:
		return renderObject(val), nil
	case nil:
		return "", nil
	default:
		return cell(val), nil
	}
}

func renderList(items []any) string {
	if len(items) == 0 {
		return "(none)"
	}

	keys := make(map[string]struct{})
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return renderScalars(items)
		}
		for k := range obj {
			keys[k] = struct{}{}
		}
	}
	columns := orderColumns(keys)

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, item := range items {
		obj := item.(map[string]any)
		row := make(table.Row, len(columns))
		for i, c := range columns {
			row[i] = cell(obj[c])
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d total", len(items))})
	return t.Render()
}

func renderScalars(items []any) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Value"})
	for _, item := range items {
		t.AppendRow(table.Row{cell(item)})
	}
	return t.Render()
}

func renderObject(obj map[string]any) string {
	keys := make(map[string]struct{}, len(obj))
	for k := range obj {
		keys[k] = struct{}{}
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, k := range orderColumns(keys) {
		t.AppendRow(table.Row{k, cell(obj[k])})
	}
	return t.Render()
}

func orderColumns(keys map[string]struct{}) []string {
	columns := make([]string, 0, len(keys))
	for _, k := range leadingColumns {
		if _, ok := keys[k]; ok {
			columns = append(columns, k)
		}
	}
	rest := make([]string, 0, len(keys))
	for k := range keys {
		if !slices.Contains(leadingColumns, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(columns, rest...)
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
