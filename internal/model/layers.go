package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// shape is the per-sample activation shape. steps == 0 marks a flat vector
// of length channels.
type shape struct {
	steps    int
	channels int
}

func (s shape) size() int {
	if s.steps == 0 {
		return s.channels
	}
	return s.steps * s.channels
}

func (s shape) rows() int {
	if s.steps == 0 {
		return 1
	}
	return s.steps
}

func (s shape) String() string {
	if s.steps == 0 {
		return fmt.Sprintf("(%d)", s.channels)
	}
	return fmt.Sprintf("(%d, %d)", s.steps, s.channels)
}

type tensor struct {
	shape
	data []float64
}

// layer is a built, read-only stage of the network. forward never writes to
// its input.
type layer interface {
	kind() string
	output() shape
	forward(in tensor) tensor
}

func newLayer(s LayerSpec, in shape) (layer, error) {
	switch s.Type {
	case "conv1d":
		return newConv1D(s, in)
	case "max_pooling1d":
		return newPool1D(s, in, true)
	case "average_pooling1d":
		return newPool1D(s, in, false)
	case "global_average_pooling1d":
		return newGlobalPool(s, in, false)
	case "global_max_pooling1d":
		return newGlobalPool(s, in, true)
	case "batch_normalization":
		return newBatchNorm(s, in)
	case "dropout":
		return passthrough{name: "dropout", shape: in}, nil
	case "flatten":
		return passthrough{name: "flatten", shape: shape{channels: in.size()}}, nil
	case "dense":
		return newDense(s, in)
	case "activation":
		act, err := activationByName(s.Activation)
		if err != nil {
			return nil, err
		}
		return activationLayer{shape: in, act: act}, nil
	default:
		return nil, fmt.Errorf("unsupported layer type %q", s.Type)
	}
}

func paddingFor(padding string, steps, window, stride int) (outSteps, padLeft int, err error) {
	switch padding {
	case "", "valid":
		if steps < window {
			return 0, 0, fmt.Errorf("window %d is larger than input length %d", window, steps)
		}
		return (steps-window)/stride + 1, 0, nil
	case "same":
		outSteps = (steps + stride - 1) / stride
		total := (outSteps-1)*stride + window - steps
		if total < 0 {
			total = 0
		}
		return outSteps, total / 2, nil
	default:
		return 0, 0, fmt.Errorf("unsupported padding %q", padding)
	}
}

func biasFor(b []float64, n int) ([]float64, error) {
	switch len(b) {
	case 0:
		return make([]float64, n), nil
	case n:
		return b, nil
	default:
		return nil, fmt.Errorf("bias has %d values, want %d", len(b), n)
	}
}

// conv1d is a Keras Conv1D evaluated as im2col followed by one matrix product.
type conv1d struct {
	in, out shape
	kernel  int
	stride  int
	padLeft int
	weights *mat.Dense // (kernel*in.channels, filters)
	bias    []float64
	act     activation
}

func newConv1D(s LayerSpec, in shape) (layer, error) {
	if in.steps == 0 {
		return nil, fmt.Errorf("conv1d needs a sequence input, got %s", in)
	}
	if s.Filters < 1 || s.KernelSize < 1 {
		return nil, fmt.Errorf("conv1d needs positive filters and kernel_size")
	}
	stride := s.Strides
	if stride < 1 {
		stride = 1
	}
	outSteps, padLeft, err := paddingFor(s.Padding, in.steps, s.KernelSize, stride)
	if err != nil {
		return nil, fmt.Errorf("conv1d: %w", err)
	}

	rows := s.KernelSize * in.channels
	if len(s.Kernel) != rows*s.Filters {
		return nil, fmt.Errorf("conv1d kernel has %d values, want %d", len(s.Kernel), rows*s.Filters)
	}
	bias, err := biasFor(s.Bias, s.Filters)
	if err != nil {
		return nil, fmt.Errorf("conv1d: %w", err)
	}
	act, err := activationByName(s.Activation)
	if err != nil {
		return nil, err
	}

	return &conv1d{
		in:      in,
		out:     shape{steps: outSteps, channels: s.Filters},
		kernel:  s.KernelSize,
		stride:  stride,
		padLeft: padLeft,
		weights: mat.NewDense(rows, s.Filters, s.Kernel),
		bias:    bias,
		act:     act,
	}, nil
}

func (c *conv1d) kind() string  { return "conv1d" }
func (c *conv1d) output() shape { return c.out }

func (c *conv1d) forward(in tensor) tensor {
	ch := c.in.channels
	width := c.kernel * ch
	cols := make([]float64, c.out.steps*width)
	for t := 0; t < c.out.steps; t++ {
		start := t*c.stride - c.padLeft
		row := cols[t*width : (t+1)*width]
		for j := 0; j < c.kernel; j++ {
			pos := start + j
			if pos < 0 || pos >= c.in.steps {
				continue
			}
			copy(row[j*ch:(j+1)*ch], in.data[pos*ch:(pos+1)*ch])
		}
	}

	data := make([]float64, c.out.size())
	res := mat.NewDense(c.out.steps, c.out.channels, data)
	res.Mul(mat.NewDense(c.out.steps, width, cols), c.weights)
	addBias(data, c.bias)
	applyRows(data, c.out.channels, c.act)
	return tensor{shape: c.out, data: data}
}

// dense applies a fully connected layer along the last axis.
type dense struct {
	out     shape
	inner   int
	weights *mat.Dense // (in, units)
	bias    []float64
	act     activation
}

func newDense(s LayerSpec, in shape) (layer, error) {
	if s.Units < 1 {
		return nil, fmt.Errorf("dense needs positive units")
	}
	if len(s.Kernel) != in.channels*s.Units {
		return nil, fmt.Errorf("dense kernel has %d values, want %d for input %s", len(s.Kernel), in.channels*s.Units, in)
	}
	bias, err := biasFor(s.Bias, s.Units)
	if err != nil {
		return nil, fmt.Errorf("dense: %w", err)
	}
	act, err := activationByName(s.Activation)
	if err != nil {
		return nil, err
	}
	return &dense{
		out:     shape{steps: in.steps, channels: s.Units},
		inner:   in.channels,
		weights: mat.NewDense(in.channels, s.Units, s.Kernel),
		bias:    bias,
		act:     act,
	}, nil
}

func (d *dense) kind() string  { return "dense" }
func (d *dense) output() shape { return d.out }

func (d *dense) forward(in tensor) tensor {
	rows := in.rows()
	data := make([]float64, d.out.size())
	res := mat.NewDense(rows, d.out.channels, data)
	res.Mul(mat.NewDense(rows, d.inner, in.data), d.weights)
	addBias(data, d.bias)
	applyRows(data, d.out.channels, d.act)
	return tensor{shape: d.out, data: data}
}

type pool1d struct {
	in, out shape
	max     bool
	pool    int
	stride  int
	padLeft int
}

func newPool1D(s LayerSpec, in shape, isMax bool) (layer, error) {
	if in.steps == 0 {
		return nil, fmt.Errorf("%s needs a sequence input, got %s", s.Type, in)
	}
	pool := s.PoolSize
	if pool < 1 {
		pool = 2
	}
	stride := s.Strides
	if stride < 1 {
		stride = pool
	}
	outSteps, padLeft, err := paddingFor(s.Padding, in.steps, pool, stride)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Type, err)
	}
	return &pool1d{
		in:      in,
		out:     shape{steps: outSteps, channels: in.channels},
		max:     isMax,
		pool:    pool,
		stride:  stride,
		padLeft: padLeft,
	}, nil
}

func (p *pool1d) kind() string {
	if p.max {
		return "max_pooling1d"
	}
	return "average_pooling1d"
}

func (p *pool1d) output() shape { return p.out }

// forward skips padded positions, matching Keras "same" pooling.
func (p *pool1d) forward(in tensor) tensor {
	ch := p.in.channels
	data := make([]float64, p.out.size())
	for t := 0; t < p.out.steps; t++ {
		start := t*p.stride - p.padLeft
		for c := 0; c < ch; c++ {
			acc := math.Inf(-1)
			if !p.max {
				acc = 0
			}
			n := 0
			for j := 0; j < p.pool; j++ {
				pos := start + j
				if pos < 0 || pos >= p.in.steps {
					continue
				}
				v := in.data[pos*ch+c]
				if p.max {
					acc = math.Max(acc, v)
				} else {
					acc += v
				}
				n++
			}
			if !p.max && n > 0 {
				acc /= float64(n)
			}
			data[t*ch+c] = acc
		}
	}
	return tensor{shape: p.out, data: data}
}

type globalPool struct {
	in  shape
	max bool
}

func newGlobalPool(s LayerSpec, in shape, isMax bool) (layer, error) {
	if in.steps == 0 {
		return nil, fmt.Errorf("%s needs a sequence input, got %s", s.Type, in)
	}
	return &globalPool{in: in, max: isMax}, nil
}

func (g *globalPool) kind() string {
	if g.max {
		return "global_max_pooling1d"
	}
	return "global_average_pooling1d"
}

func (g *globalPool) output() shape { return shape{channels: g.in.channels} }

func (g *globalPool) forward(in tensor) tensor {
	ch := g.in.channels
	data := make([]float64, ch)
	for c := 0; c < ch; c++ {
		acc := in.data[c]
		for t := 1; t < g.in.steps; t++ {
			v := in.data[t*ch+c]
			if g.max {
				acc = math.Max(acc, v)
			} else {
				acc += v
			}
		}
		if !g.max {
			acc /= float64(g.in.steps)
		}
		data[c] = acc
	}
	return tensor{shape: g.output(), data: data}
}

// batchNorm is inference-mode batch normalization folded into a scale and
// shift per channel.
type batchNorm struct {
	shape shape
	scale []float64
	shift []float64
}

func newBatchNorm(s LayerSpec, in shape) (layer, error) {
	n := in.channels
	if len(s.MovingMean) != n || len(s.MovingVariance) != n {
		return nil, fmt.Errorf("batch_normalization needs %d moving statistics, got mean=%d variance=%d",
			n, len(s.MovingMean), len(s.MovingVariance))
	}
	gamma := s.Gamma
	if len(gamma) == 0 {
		gamma = ones(n)
	}
	beta := s.Beta
	if len(beta) == 0 {
		beta = make([]float64, n)
	}
	if len(gamma) != n || len(beta) != n {
		return nil, fmt.Errorf("batch_normalization gamma/beta must have %d values", n)
	}
	eps := s.Epsilon
	if eps <= 0 {
		eps = 1e-3
	}

	bn := &batchNorm{shape: in, scale: make([]float64, n), shift: make([]float64, n)}
	for i := 0; i < n; i++ {
		bn.scale[i] = gamma[i] / math.Sqrt(s.MovingVariance[i]+eps)
		bn.shift[i] = beta[i] - s.MovingMean[i]*bn.scale[i]
	}
	return bn, nil
}

func (b *batchNorm) kind() string  { return "batch_normalization" }
func (b *batchNorm) output() shape { return b.shape }

func (b *batchNorm) forward(in tensor) tensor {
	n := b.shape.channels
	data := make([]float64, len(in.data))
	for i, v := range in.data {
		c := i % n
		data[i] = v*b.scale[c] + b.shift[c]
	}
	return tensor{shape: b.shape, data: data}
}

// passthrough covers dropout (identity at inference) and flatten (row-major
// reinterpretation).
type passthrough struct {
	name  string
	shape shape
}

func (p passthrough) kind() string  { return p.name }
func (p passthrough) output() shape { return p.shape }

func (p passthrough) forward(in tensor) tensor {
	return tensor{shape: p.shape, data: in.data}
}

type activationLayer struct {
	shape shape
	act   activation
}

func (a activationLayer) kind() string  { return "activation" }
func (a activationLayer) output() shape { return a.shape }

func (a activationLayer) forward(in tensor) tensor {
	data := make([]float64, len(in.data))
	copy(data, in.data)
	applyRows(data, a.shape.channels, a.act)
	return tensor{shape: a.shape, data: data}
}

func addBias(data, bias []float64) {
	n := len(bias)
	for i := range data {
		data[i] += bias[i%n]
	}
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
