package gof

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ReportWriter encodes goodness-of-fit reports.
type ReportWriter interface {
	Write(w io.Writer, report *Report) error
	WriteFile(path string, report *Report) error
}

type jsonWriter struct{}

type yamlWriter struct{}

// NewReportWriter returns the writer for format ("json" or "yaml").
func NewReportWriter(format string) (ReportWriter, error) {
	switch format {
	case FormatJSON, "":
		return jsonWriter{}, nil
	case FormatYAML, "yml":
		return yamlWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

func (jsonWriter) Write(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

func (jw jsonWriter) WriteFile(path string, report *Report) error {
	return writeFile(path, report, jw)
}

func (yamlWriter) Write(w io.Writer, report *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

func (yw yamlWriter) WriteFile(path string, report *Report) error {
	return writeFile(path, report, yw)
}

func writeFile(path string, report *Report, rw ReportWriter) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := rw.Write(file, report); err != nil {
		return err
	}
	return file.Close()
}
