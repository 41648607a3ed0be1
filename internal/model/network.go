// Package model runs the pretrained sound classifier. A Network is built once
// from an exported artifact and is read-only afterwards, so a single instance
// serves concurrent predictions without locking.
package model

import (
	"fmt"
	"math"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"gonum.org/v1/gonum/floats"
)

var (
	ErrShapeMismatch = fmt.Errorf("model: input shape mismatch: %w", domain.ErrInference)
	ErrNonFinite     = fmt.Errorf("model: non-finite output: %w", domain.ErrInference)
)

// Network is a sequential stack of layers evaluated for a batch of one.
type Network struct {
	name   string
	input  shape
	layers []layer
}

// LayerSummary describes a built layer for inspection tooling.
type LayerSummary struct {
	Index  int
	Type   string
	Output string
}

// Build validates an artifact by propagating shapes through every layer and
// returns the runnable network.
func Build(a Artifact) (*Network, error) {
	if a.Format != "sequential" {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidArtifact, a.Format)
	}

	var in shape
	switch len(a.InputShape) {
	case 1:
		in = shape{steps: a.InputShape[0], channels: 1}
	case 2:
		in = shape{steps: a.InputShape[0], channels: a.InputShape[1]}
	default:
		return nil, fmt.Errorf("%w: input_shape must have 1 or 2 dims, got %v", ErrInvalidArtifact, a.InputShape)
	}
	if in.steps < 1 || in.channels < 1 {
		return nil, fmt.Errorf("%w: input_shape must be positive, got %v", ErrInvalidArtifact, a.InputShape)
	}
	if len(a.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalidArtifact)
	}

	n := &Network{name: a.Name, input: in, layers: make([]layer, 0, len(a.Layers))}
	cur := in
	for i, spec := range a.Layers {
		l, err := newLayer(spec, cur)
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d (%s): %v", ErrInvalidArtifact, i, spec.Type, err)
		}
		n.layers = append(n.layers, l)
		cur = l.output()
	}
	if cur.steps != 0 {
		return nil, fmt.Errorf("%w: output must be a flat vector, got %s", ErrInvalidArtifact, cur)
	}
	return n, nil
}

// Predict runs a forward pass. The vector is read as shape
// (batch=1, steps, channels) and the final layer's output is returned,
// a probability distribution when the network ends in softmax.
func (n *Network) Predict(v domain.FeatureVector) ([]float64, error) {
	if len(v) != n.input.size() {
		return nil, fmt.Errorf("%w: got %d values, want %d %s", ErrShapeMismatch, len(v), n.input.size(), n.input)
	}

	t := tensor{shape: n.input, data: []float64(v)}
	for _, l := range n.layers {
		t = l.forward(t)
	}

	out := make([]float64, len(t.data))
	for i, p := range t.data {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: class %d", ErrNonFinite, i)
		}
		out[i] = p
	}
	return out, nil
}

// InputSize is the number of features the network expects.
func (n *Network) InputSize() int {
	return n.input.size()
}

// OutputSize is the number of classes the network scores.
func (n *Network) OutputSize() int {
	return n.layers[len(n.layers)-1].output().channels
}

func (n *Network) Name() string {
	return n.name
}

func (n *Network) Summary() []LayerSummary {
	out := make([]LayerSummary, len(n.layers))
	for i, l := range n.layers {
		out[i] = LayerSummary{Index: i, Type: l.kind(), Output: l.output().String()}
	}
	return out
}

// Argmax returns the index of the largest score; ties resolve to the lowest
// index. It returns -1 for an empty slice.
func Argmax(scores []float64) int {
	if len(scores) == 0 {
		return -1
	}
	return floats.MaxIdx(scores)
}
