package model

import (
	"fmt"
	"math"
)

// activation transforms one row (the last axis) in place. nil is linear.
type activation func(row []float64)

func activationByName(name string) (activation, error) {
	switch name {
	case "", "linear":
		return nil, nil
	case "relu":
		return relu, nil
	case "sigmoid":
		return sigmoid, nil
	case "tanh":
		return tanh, nil
	case "softmax":
		return softmax, nil
	default:
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
}

func applyRows(data []float64, width int, act activation) {
	if act == nil {
		return
	}
	for i := 0; i+width <= len(data); i += width {
		act(data[i : i+width])
	}
}

func relu(row []float64) {
	for i, v := range row {
		if v < 0 {
			row[i] = 0
		}
	}
}

func sigmoid(row []float64) {
	for i, v := range row {
		row[i] = 1 / (1 + math.Exp(-v))
	}
}

func tanh(row []float64) {
	for i, v := range row {
		row[i] = math.Tanh(v)
	}
}

func softmax(row []float64) {
	peak := math.Inf(-1)
	for _, v := range row {
		peak = math.Max(peak, v)
	}
	var sum float64
	for i, v := range row {
		row[i] = math.Exp(v - peak)
		sum += row[i]
	}
	for i := range row {
		row[i] /= sum
	}
}
