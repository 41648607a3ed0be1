package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrInvalidArtifact is returned when a model document cannot be turned into
// a runnable network.
var ErrInvalidArtifact = errors.New("model: invalid artifact")

// Artifact is the exported form of a trained sequential network. Weight
// arrays use the Keras layouts flattened row-major: conv1d kernels are
// (kernel_size, in_channels, filters), dense kernels are (in, units).
type Artifact struct {
	Format     string      `msgpack:"format" json:"format"`
	Name       string      `msgpack:"name,omitempty" json:"name,omitempty"`
	InputShape []int       `msgpack:"input_shape" json:"input_shape"`
	Layers     []LayerSpec `msgpack:"layers" json:"layers"`
}

// LayerSpec describes one layer. Only the fields relevant to Type are read.
type LayerSpec struct {
	Type       string `msgpack:"type" json:"type"`
	Name       string `msgpack:"name,omitempty" json:"name,omitempty"`
	Activation string `msgpack:"activation,omitempty" json:"activation,omitempty"`

	Filters    int    `msgpack:"filters,omitempty" json:"filters,omitempty"`
	KernelSize int    `msgpack:"kernel_size,omitempty" json:"kernel_size,omitempty"`
	Strides    int    `msgpack:"strides,omitempty" json:"strides,omitempty"`
	Padding    string `msgpack:"padding,omitempty" json:"padding,omitempty"`
	PoolSize   int    `msgpack:"pool_size,omitempty" json:"pool_size,omitempty"`
	Units      int    `msgpack:"units,omitempty" json:"units,omitempty"`

	Epsilon float64 `msgpack:"epsilon,omitempty" json:"epsilon,omitempty"`
	Rate    float64 `msgpack:"rate,omitempty" json:"rate,omitempty"`

	Kernel         []float64 `msgpack:"kernel,omitempty" json:"kernel,omitempty"`
	Bias           []float64 `msgpack:"bias,omitempty" json:"bias,omitempty"`
	Gamma          []float64 `msgpack:"gamma,omitempty" json:"gamma,omitempty"`
	Beta           []float64 `msgpack:"beta,omitempty" json:"beta,omitempty"`
	MovingMean     []float64 `msgpack:"moving_mean,omitempty" json:"moving_mean,omitempty"`
	MovingVariance []float64 `msgpack:"moving_variance,omitempty" json:"moving_variance,omitempty"`
}

// Parse decodes a model document and builds the network. Files ending in
// .json are read as JSON, everything else as msgpack.
func Parse(data []byte, name string) (*Network, error) {
	var a Artifact
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidArtifact, err)
		}
	default:
		if err := msgpack.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("%w: decode msgpack: %v", ErrInvalidArtifact, err)
		}
	}
	return Build(a)
}
