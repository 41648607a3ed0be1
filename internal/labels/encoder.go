// Package labels maps classifier output indices to the category names the
// model was trained with.
package labels

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidClassIndex = fmt.Errorf("labels: %w", domain.ErrInvalidClassIndex)
	ErrUnknownLabel      = errors.New("labels: unknown label")
	ErrInvalidArtifact   = errors.New("labels: invalid label artifact")
)

// Encoder is an immutable index<->label table. It is safe for concurrent use.
type Encoder struct {
	classes []string
	index   map[string]int
}

// New builds an encoder whose index i decodes to classes[i].
func New(classes []string) (*Encoder, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: no classes", ErrInvalidArtifact)
	}
	e := &Encoder{
		classes: make([]string, len(classes)),
		index:   make(map[string]int, len(classes)),
	}
	for i, c := range classes {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("%w: empty label at index %d", ErrInvalidArtifact, i)
		}
		if prev, ok := e.index[c]; ok {
			return nil, fmt.Errorf("%w: label %q at %d duplicates index %d", ErrInvalidArtifact, c, i, prev)
		}
		e.classes[i] = c
		e.index[c] = i
	}
	return e, nil
}

// Parse decodes a label artifact. YAML and JSON documents may be a bare list
// or a mapping with a "classes" list; anything else is read as one label per
// line. name is only used for its extension.
func Parse(data []byte, name string) (*Encoder, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		classes, err := parseDocument(data)
		if err != nil {
			return nil, err
		}
		return New(classes)
	default:
		return New(parseLines(data))
	}
}

func parseDocument(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidArtifact)
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
	case yaml.MappingNode:
		var found *yaml.Node
		for i := 0; i+1 < len(root.Content); i += 2 {
			if root.Content[i].Value == "classes" {
				found = root.Content[i+1]
				break
			}
		}
		if found == nil || found.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%w: mapping has no classes list", ErrInvalidArtifact)
		}
		root = found
	default:
		return nil, fmt.Errorf("%w: expected a list of labels", ErrInvalidArtifact)
	}

	var classes []string
	if err := root.Decode(&classes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	return classes, nil
}

func parseLines(data []byte) []string {
	var classes []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		classes = append(classes, line)
	}
	return classes
}

// Decode returns the label for a classifier output index.
func (e *Encoder) Decode(index int) (string, error) {
	if index < 0 || index >= len(e.classes) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidClassIndex, index, len(e.classes))
	}
	return e.classes[index], nil
}

// Encode returns the index a label was trained under.
func (e *Encoder) Encode(label string) (int, error) {
	i, ok := e.index[label]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return i, nil
}

// Classes returns a copy of the vocabulary in index order.
func (e *Encoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

func (e *Encoder) Len() int {
	return len(e.classes)
}
