// Package report renders checksum results for output.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Ning0612/Sumkeeper/internal/domain"
)

// Format selects a report rendering
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// IsValid checks if the format is known
func (f Format) IsValid() bool {
	switch f {
	case FormatText, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// ParseFormat parses a case-insensitive format name
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("unknown report format %q (want text, json or yaml)", s)
	}
	return f, nil
}

// Reporter renders checksum records
type Reporter interface {
	Render(records []domain.ChecksumRecord) (string, error)
}

// New returns the reporter for f (text for unknown formats)
func New(f Format) Reporter {
	switch f {
	case FormatJSON:
		return JSONReporter{}
	case FormatYAML:
		return YAMLReporter{}
	default:
		return TextReporter{}
	}
}

// TextReporter renders "<digest> <'*'|' '><path>" lines, '*' marking binary
// files, joined by newlines without a trailing one.
type TextReporter struct{}

func (TextReporter) Render(records []domain.ChecksumRecord) (string, error) {
	var sb strings.Builder
	for i, r := range records {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(r.Digest)
		sb.WriteByte(' ')
		if r.IsBinary() {
			sb.WriteByte('*')
		} else {
			sb.WriteByte(' ')
		}
		sb.WriteString(r.Path)
	}
	return sb.String(), nil
}

// JSONReporter renders an indented JSON array
type JSONReporter struct{}

func (JSONReporter) Render(records []domain.ChecksumRecord) (string, error) {
	if records == nil {
		records = []domain.ChecksumRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render json: %w", err)
	}
	return string(data), nil
}

// YAMLReporter renders a YAML sequence
type YAMLReporter struct{}

func (YAMLReporter) Render(records []domain.ChecksumRecord) (string, error) {
	if records == nil {
		records = []domain.ChecksumRecord{}
	}
	data, err := yaml.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("render yaml: %w", err)
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}
