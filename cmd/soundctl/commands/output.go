package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
)

// readClip loads an audio file and tags it with the format its name implies.
func readClip(path string) (domain.AudioClip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AudioClip{}, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	name := filepath.Base(path)
	return domain.AudioClip{
		Filename: name,
		Format:   domain.FormatFromName(name, ""),
		Data:     data,
	}, nil
}

// featureFile is the document written by features and read by predict.
type featureFile struct {
	File     string    `json:"file,omitempty" yaml:"file,omitempty"`
	Features []float64 `json:"features" yaml:"features"`
}

// loadFeatures accepts either a featureFile document or a bare list of
// numbers, in JSON or YAML.
func loadFeatures(path string) (domain.FeatureVector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var doc featureFile
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Features) > 0 {
		return doc.Features, nil
	}
	var list []float64
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse %s: expected a feature list or a features document", path)
	}
	return list, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
