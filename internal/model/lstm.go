package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/failsense/failpredict/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// Weights file layout, exported from the Keras model:
//
//	{
//	  "input_shape": [timesteps, channels],
//	  "layers": [
//	    {"type": "lstm", "units": u, "return_sequences": false,
//	     "kernel": [in][4u], "recurrent_kernel": [u][4u], "bias": [4u]},
//	    {"type": "dropout"},
//	    {"type": "dense", "activation": "sigmoid", "kernel": [in][out], "bias": [out]}
//	  ]
//	}
//
// LSTM gates are packed in Keras order: input, forget, cell, output.
type weightsFile struct {
	InputShape []int       `json:"input_shape"`
	Layers     []layerSpec `json:"layers"`
}

type layerSpec struct {
	Type            string      `json:"type"`
	Units           int         `json:"units"`
	ReturnSequences bool        `json:"return_sequences"`
	Activation      string      `json:"activation"`
	Kernel          [][]float64 `json:"kernel"`
	RecurrentKernel [][]float64 `json:"recurrent_kernel"`
	Bias            []float64   `json:"bias"`
}

// layer maps a (steps, width) activation to the next one.
type layer interface {
	forward(x [][]float64) [][]float64
}

// LSTM is an in-process sequence model. It is immutable after loading and
// safe for concurrent use.
type LSTM struct {
	timesteps int
	channels  int
	layers    []layer
}

// LoadLSTM reads and validates a weights file.
func LoadLSTM(path string) (*LSTM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ErrModelLoad{Path: path, Err: err}
	}

	var wf weightsFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, domain.ErrModelLoad{Path: path, Err: fmt.Errorf("decode weights: %w", err)}
	}

	m, err := newLSTM(wf)
	if err != nil {
		return nil, domain.ErrModelLoad{Path: path, Err: err}
	}
	return m, nil
}

func newLSTM(wf weightsFile) (*LSTM, error) {
	if len(wf.InputShape) != 2 || wf.InputShape[0] <= 0 || wf.InputShape[1] <= 0 {
		return nil, fmt.Errorf("input_shape must be [timesteps, channels], got %v", wf.InputShape)
	}
	if len(wf.Layers) == 0 {
		return nil, errors.New("no layers")
	}

	m := &LSTM{timesteps: wf.InputShape[0], channels: wf.InputShape[1]}
	width := m.channels
	seq := true

	for i, spec := range wf.Layers {
		switch spec.Type {
		case "lstm":
			if !seq {
				return nil, fmt.Errorf("layer %d: lstm needs a sequence input", i)
			}
			l, err := newLSTMLayer(spec, width)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			m.layers = append(m.layers, l)
			width = spec.Units
			seq = spec.ReturnSequences
		case "dense":
			l, err := newDenseLayer(spec, width)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			m.layers = append(m.layers, l)
			width = len(spec.Bias)
		case "dropout":
			// inference no-op
		default:
			return nil, fmt.Errorf("layer %d: unsupported type %q", i, spec.Type)
		}
	}

	if seq {
		return nil, errors.New("model output still has a time axis; last lstm must not return sequences")
	}
	return m, nil
}

func (m *LSTM) Name() string {
	return "lstm"
}

// Predict runs every batch entry through the layers. Each input entry must
// have shape (timesteps, channels).
func (m *LSTM) Predict(ctx context.Context, input [][][]float64) ([][]float64, error) {
	if len(input) == 0 {
		return nil, errors.New("empty batch")
	}

	out := make([][]float64, 0, len(input))
	for b, sample := range input {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(sample) != m.timesteps {
			return nil, fmt.Errorf("batch %d: expected %d timesteps, got %d", b, m.timesteps, len(sample))
		}
		for t, step := range sample {
			if len(step) != m.channels {
				return nil, fmt.Errorf("batch %d step %d: expected %d channels, got %d", b, t, m.channels, len(step))
			}
		}

		x := sample
		for _, l := range m.layers {
			x = l.forward(x)
		}
		out = append(out, x[len(x)-1])
	}
	return out, nil
}

// --- lstm ---

type lstmLayer struct {
	units           int
	returnSequences bool
	kernel          *mat.Dense // (in, 4u)
	recurrentKernel *mat.Dense // (u, 4u)
	bias            *mat.VecDense
}

func newLSTMLayer(spec layerSpec, inWidth int) (*lstmLayer, error) {
	u := spec.Units
	if u <= 0 {
		return nil, fmt.Errorf("lstm units must be positive, got %d", u)
	}
	if err := checkMatrix("kernel", spec.Kernel, inWidth, 4*u); err != nil {
		return nil, err
	}
	if err := checkMatrix("recurrent_kernel", spec.RecurrentKernel, u, 4*u); err != nil {
		return nil, err
	}
	if len(spec.Bias) != 4*u {
		return nil, fmt.Errorf("bias: expected %d values, got %d", 4*u, len(spec.Bias))
	}
	return &lstmLayer{
		units:           u,
		returnSequences: spec.ReturnSequences,
		kernel:          denseFrom(spec.Kernel),
		recurrentKernel: denseFrom(spec.RecurrentKernel),
		bias:            vecFrom(spec.Bias),
	}, nil
}

func (l *lstmLayer) forward(x [][]float64) [][]float64 {
	u := l.units
	h := make([]float64, u)
	c := make([]float64, u)

	var z, rec mat.VecDense
	var seq [][]float64
	for _, xt := range x {
		z.MulVec(l.kernel.T(), mat.NewVecDense(len(xt), xt))
		rec.MulVec(l.recurrentKernel.T(), mat.NewVecDense(u, h))
		z.AddVec(&z, &rec)
		z.AddVec(&z, l.bias)

		next := make([]float64, u)
		for k := 0; k < u; k++ {
			in := sigmoid(z.AtVec(k))
			forget := sigmoid(z.AtVec(u + k))
			cand := math.Tanh(z.AtVec(2*u + k))
			out := sigmoid(z.AtVec(3*u + k))
			c[k] = forget*c[k] + in*cand
			next[k] = out * math.Tanh(c[k])
		}
		h = next
		if l.returnSequences {
			seq = append(seq, h)
		}
	}

	if l.returnSequences {
		return seq
	}
	return [][]float64{h}
}

// --- dense ---

type denseLayer struct {
	kernel     *mat.Dense // (in, out)
	bias       *mat.VecDense
	activation func(float64) float64
}

func newDenseLayer(spec layerSpec, inWidth int) (*denseLayer, error) {
	if len(spec.Bias) == 0 {
		return nil, errors.New("dense bias is empty")
	}
	if err := checkMatrix("kernel", spec.Kernel, inWidth, len(spec.Bias)); err != nil {
		return nil, err
	}
	act, ok := activations[spec.Activation]
	if !ok {
		return nil, fmt.Errorf("unsupported activation %q", spec.Activation)
	}
	return &denseLayer{kernel: denseFrom(spec.Kernel), bias: vecFrom(spec.Bias), activation: act}, nil
}

// Applied per timestep, as Keras does for 3D inputs.
func (l *denseLayer) forward(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for t, xt := range x {
		var y mat.VecDense
		y.MulVec(l.kernel.T(), mat.NewVecDense(len(xt), xt))
		y.AddVec(&y, l.bias)

		row := make([]float64, y.Len())
		for j := range row {
			row[j] = l.activation(y.AtVec(j))
		}
		out[t] = row
	}
	return out
}

// --- helpers ---

var activations = map[string]func(float64) float64{
	"":        linear,
	"linear":  linear,
	"sigmoid": sigmoid,
	"tanh":    math.Tanh,
	"relu":    relu,
}

func linear(x float64) float64 { return x }

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func relu(x float64) float64 { return math.Max(0, x) }

func checkMatrix(name string, m [][]float64, rows, cols int) error {
	if len(m) != rows {
		return fmt.Errorf("%s: expected %d rows, got %d", name, rows, len(m))
	}
	for i, row := range m {
		if len(row) != cols {
			return fmt.Errorf("%s row %d: expected %d columns, got %d", name, i, cols, len(row))
		}
	}
	return nil
}

// denseFrom copies a validated row-major matrix.
func denseFrom(rows [][]float64) *mat.Dense {
	d := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		d.SetRow(i, row)
	}
	return d
}

func vecFrom(v []float64) *mat.VecDense {
	return mat.NewVecDense(len(v), append([]float64(nil), v...))
}
