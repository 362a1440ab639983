package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Ning0612/Sumkeeper/internal/domain"
)

type classifiedItem struct {
	Path   string        `json:"path" yaml:"path"`
	Status domain.Status `json:"status" yaml:"status"`
	Digest string        `json:"digest" yaml:"digest"`
}

// RenderClassification renders verification entries.
// Text output is one "path: STATUS" line per entry.
func RenderClassification(entries []domain.ClassifiedEntry, f Format) (string, error) {
	switch f {
	case FormatJSON, FormatYAML:
		items := make([]classifiedItem, 0, len(entries))
		for _, e := range entries {
			items = append(items, classifiedItem{Path: e.Path, Status: e.Status, Digest: e.Record.Digest})
		}
		if f == FormatJSON {
			data, err := json.MarshalIndent(items, "", "  ")
			if err != nil {
				return "", fmt.Errorf("render json: %w", err)
			}
			return string(data), nil
		}
		data, err := yaml.Marshal(items)
		if err != nil {
			return "", fmt.Errorf("render yaml: %w", err)
		}
		return strings.TrimSuffix(string(data), "\n"), nil
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", e.Path, strings.ToUpper(string(e.Status))))
	}
	return strings.Join(lines, "\n"), nil
}
