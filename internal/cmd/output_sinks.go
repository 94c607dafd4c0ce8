package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onecloud/onecloud/internal/output"
)

type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

func openSink(cmd *cobra.Command, path string) (*outputSink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		return &outputSink{writer: cmd.OutOrStdout(), close: func() error { return nil }, path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(trimmed)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: trimmed}, nil
}

// writeResult renders v with the command's --output-format into --out.
func writeResult(cmd *cobra.Command, v any) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}
	rendered, err := output.Render(format, v)
	if err != nil {
		return err
	}

	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	sink, err := openSink(cmd, outPath)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	if rendered == "" {
		return nil
	}
	_, err = fmt.Fprintln(sink.writer, rendered)
	return err
}

// writeRaw is writeResult for API responses.
func writeRaw(cmd *cobra.Command, raw json.RawMessage) error {
	return writeResult(cmd, raw)
}
