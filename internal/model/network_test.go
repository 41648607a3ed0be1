package model

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/vmihailenco/msgpack/v5"
)

func seq(n int, scale float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(float64(i+1)) * scale
	}
	return out
}

// classifierArtifact mirrors the shape of the production model: a 50-step
// single-channel input, conv, pooling, normalization and a softmax head.
func classifierArtifact(classes int) Artifact {
	return Artifact{
		Format:     "sequential",
		Name:       "test-classifier",
		InputShape: []int{domain.FeatureLength, 1},
		Layers: []LayerSpec{
			{Type: "conv1d", Filters: 4, KernelSize: 3, Activation: "relu", Kernel: seq(3*1*4, 0.5), Bias: seq(4, 0.1)},
			{Type: "batch_normalization", MovingMean: seq(4, 0.1), MovingVariance: []float64{1, 2, 3, 4}, Gamma: []float64{1, 1, 1, 1}, Beta: seq(4, 0.01)},
			{Type: "max_pooling1d", PoolSize: 2},
			{Type: "dropout", Rate: 0.3},
			{Type: "flatten"},
			{Type: "dense", Units: 8, Activation: "tanh", Kernel: seq(24*4*8, 0.05), Bias: seq(8, 0.01)},
			{Type: "dense", Units: classes, Activation: "softmax", Kernel: seq(8*classes, 0.3), Bias: seq(classes, 0.02)},
		},
	}
}

func features() domain.FeatureVector {
	v := make(domain.FeatureVector, domain.FeatureLength)
	for i := range v {
		v[i] = math.Cos(float64(i)*0.37) * 20
	}
	return v
}

func mustBuild(t *testing.T, a Artifact) *Network {
	t.Helper()
	n, err := Build(a)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return n
}

func TestPredict_SoftmaxDistribution(t *testing.T) {
	n := mustBuild(t, classifierArtifact(5))
	if n.InputSize() != domain.FeatureLength || n.OutputSize() != 5 {
		t.Fatalf("sizes: in=%d out=%d", n.InputSize(), n.OutputSize())
	}

	scores, err := n.Predict(features())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(scores) != 5 {
		t.Fatalf("expected 5 scores, got %d", len(scores))
	}
	var sum float64
	for i, p := range scores {
		if p < 0 || p > 1 {
			t.Fatalf("score %d out of range: %f", i, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("scores should sum to 1, got %f", sum)
	}
}

func TestPredict_Deterministic(t *testing.T) {
	n := mustBuild(t, classifierArtifact(5))
	v := features()
	first, err := n.Predict(v)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := n.Predict(v)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("run %d class %d: %v != %v", i, j, again[j], first[j])
			}
		}
	}
}

func TestPredict_ConcurrentCallsAgree(t *testing.T) {
	n := mustBuild(t, classifierArtifact(3))
	want, err := n.Predict(features())
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := n.Predict(features())
			if err != nil {
				errs <- err
				return
			}
			for j := range want {
				if got[j] != want[j] {
					errs <- errors.New("concurrent prediction diverged")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestPredict_ShapeMismatch(t *testing.T) {
	n := mustBuild(t, classifierArtifact(3))
	_, err := n.Predict(make(domain.FeatureVector, domain.FeatureLength-1))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if !errors.Is(err, domain.ErrInference) {
		t.Fatalf("shape mismatch should map to an inference failure, got %v", err)
	}
}

func TestPredict_DoesNotMutateInput(t *testing.T) {
	n := mustBuild(t, Artifact{
		Format:     "sequential",
		InputShape: []int{3},
		Layers: []LayerSpec{
			{Type: "flatten"},
			{Type: "activation", Activation: "relu"},
		},
	})
	v := domain.FeatureVector{-1, 2, -3}
	out, err := n.Predict(v)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if v[0] != -1 || v[2] != -3 {
		t.Fatalf("input mutated: %v", v)
	}
	if out[0] != 0 || out[1] != 2 || out[2] != 0 {
		t.Fatalf("relu output: %v", out)
	}
}

func TestConv1D_KnownValues(t *testing.T) {
	tests := []struct {
		name    string
		padding string
		steps   int
		kernel  []float64
		input   domain.FeatureVector
		want    []float64
	}{
		{
			name:   "valid",
			steps:  4,
			kernel: []float64{1, 2},
			input:  domain.FeatureVector{1, 2, 3, 4},
			want:   []float64{5.5, 8.5, 11.5},
		},
		{
			name:    "same",
			padding: "same",
			steps:   3,
			kernel:  []float64{1, 1, 1},
			input:   domain.FeatureVector{1, 2, 3},
			want:    []float64{3.5, 6.5, 5.5},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := mustBuild(t, Artifact{
				Format:     "sequential",
				InputShape: []int{tc.steps, 1},
				Layers: []LayerSpec{
					{Type: "conv1d", Filters: 1, KernelSize: len(tc.kernel), Padding: tc.padding, Kernel: tc.kernel, Bias: []float64{0.5}},
					{Type: "flatten"},
				},
			})
			got, err := n.Predict(tc.input)
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
			assertClose(t, got, tc.want)
		})
	}
}

func TestPooling_KnownValues(t *testing.T) {
	tests := []struct {
		layer string
		want  []float64
	}{
		{"max_pooling1d", []float64{3, 5}},
		{"average_pooling1d", []float64{2, 3.5}},
		{"global_max_pooling1d", []float64{5}},
		{"global_average_pooling1d", []float64{2.75}},
	}

	for _, tc := range tests {
		t.Run(tc.layer, func(t *testing.T) {
			layers := []LayerSpec{{Type: tc.layer, PoolSize: 2}}
			if tc.layer == "max_pooling1d" || tc.layer == "average_pooling1d" {
				layers = append(layers, LayerSpec{Type: "flatten"})
			}
			n := mustBuild(t, Artifact{Format: "sequential", InputShape: []int{4, 1}, Layers: layers})
			got, err := n.Predict(domain.FeatureVector{1, 3, 2, 5})
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
			assertClose(t, got, tc.want)
		})
	}
}

func TestBatchNormalization(t *testing.T) {
	n := mustBuild(t, Artifact{
		Format:     "sequential",
		InputShape: []int{2},
		Layers: []LayerSpec{
			{Type: "flatten"},
			{Type: "batch_normalization", Gamma: []float64{4, 4}, Beta: []float64{1, 1}, MovingMean: []float64{1, 1}, MovingVariance: []float64{3, 3}, Epsilon: 1},
		},
	})
	got, err := n.Predict(domain.FeatureVector{1, 3})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	// y = 4*(x-1)/2 + 1
	assertClose(t, got, []float64{1, 5})
}

func TestBuild_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{"unknown format", func(a *Artifact) { a.Format = "functional" }},
		{"bad input shape", func(a *Artifact) { a.InputShape = []int{1, 2, 3} }},
		{"no layers", func(a *Artifact) { a.Layers = nil }},
		{"unknown layer", func(a *Artifact) { a.Layers[3].Type = "lstm" }},
		{"unknown activation", func(a *Artifact) { a.Layers[0].Activation = "gelu" }},
		{"conv kernel length", func(a *Artifact) { a.Layers[0].Kernel = a.Layers[0].Kernel[1:] }},
		{"dense kernel length", func(a *Artifact) { a.Layers[5].Kernel = seq(10, 1) }},
		{"bias length", func(a *Artifact) { a.Layers[6].Bias = []float64{1} }},
		{"missing batchnorm stats", func(a *Artifact) { a.Layers[1].MovingVariance = nil }},
		{"kernel wider than input", func(a *Artifact) { a.Layers[0].KernelSize = 60 }},
		{"sequence output", func(a *Artifact) { a.Layers = a.Layers[:1] }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := classifierArtifact(3)
			tc.mutate(&a)
			if _, err := Build(a); !errors.Is(err, ErrInvalidArtifact) {
				t.Fatalf("expected ErrInvalidArtifact, got %v", err)
			}
		})
	}
}

func TestParse_MsgpackAndJSON(t *testing.T) {
	a := classifierArtifact(4)
	want := mustBuild(t, a)
	wantScores, _ := want.Predict(features())

	packed, err := msgpack.Marshal(&a)
	if err != nil {
		t.Fatalf("msgpack.Marshal: %v", err)
	}
	asJSON, err := json.Marshal(&a)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}

	for name, data := range map[string][]byte{"model.msgpack": packed, "model.json": asJSON} {
		n, err := Parse(data, name)
		if err != nil {
			t.Fatalf("Parse(%s): %v", name, err)
		}
		got, err := n.Predict(features())
		if err != nil {
			t.Fatalf("Predict(%s): %v", name, err)
		}
		assertClose(t, got, wantScores)
		if n.Name() != "test-classifier" {
			t.Fatalf("name: got %q", n.Name())
		}
	}

	if _, err := Parse([]byte("not msgpack"), "model.msgpack"); !errors.Is(err, ErrInvalidArtifact) {
		t.Fatalf("expected ErrInvalidArtifact for garbage, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	n := mustBuild(t, classifierArtifact(5))
	s := n.Summary()
	if len(s) != 7 {
		t.Fatalf("expected 7 layers, got %d", len(s))
	}
	if s[0].Type != "conv1d" || s[0].Output != "(48, 4)" {
		t.Fatalf("first layer: %+v", s[0])
	}
	if s[6].Output != "(5)" {
		t.Fatalf("last layer: %+v", s[6])
	}
}

func TestArgmax(t *testing.T) {
	if got := Argmax(nil); got != -1 {
		t.Fatalf("Argmax(nil) = %d", got)
	}
	if got := Argmax([]float64{0.1, 0.7, 0.7, 0.2}); got != 1 {
		t.Fatalf("ties should resolve to the first index, got %d", got)
	}
}

func assertClose(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length: got %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
