package model

import "io"

// Linear is a denoising regression model: each output position is a linear
// function of a local receptive field around the input position.
type Linear struct {
	intervalLen int
	field       int
	// p holds the field weights followed by the bias.
	p []float32
}

// NewLinear builds a linear model with an identity-leaning initialization.
func NewLinear(intervalLen, field int) *Linear {
	if field <= 0 {
		field = 1
	}
	m := &Linear{intervalLen: intervalLen, field: field, p: make([]float32, field+1)}
	m.p[field/2] = 1 // start close to the identity mapping
	return m
}

func (m *Linear) Name() string { return "linear" }

func (m *Linear) Parameters() [][]float32 { return [][]float32{m.p} }

func (m *Linear) forwardRow(row []float32) []float32 {
	out := make([]float32, len(row))
	half := m.field / 2
	for p := range row {
		acc := m.p[m.field]
		for j := 0; j < m.field; j++ {
			if q := p + j - half; q >= 0 && q < len(row) {
				acc += m.p[j] * row[q]
			}
		}
		out[p] = acc
	}
	return out
}

func (m *Linear) Forward(in [][]float32) [][][]float32 {
	out := make([][][]float32, len(in))
	for b, row := range in {
		pred := m.forwardRow(row)
		cols := make([][]float32, len(pred))
		for p, v := range pred {
			cols[p] = []float32{v}
		}
		out[b] = cols
	}
	return out
}

// Step runs one mean-squared-error gradient step over the batch. The target
// channel is the clean signal.
func (m *Linear) Step(in [][]float32, target [][][]float32, lr float64) float64 {
	grad := make([]float64, len(m.p))
	var loss float64
	var n int
	half := m.field / 2
	for b, row := range in {
		pred := m.forwardRow(row)
		for p := range row {
			diff := float64(pred[p]) - float64(target[b][p][0])
			loss += diff * diff
			for j := 0; j < m.field; j++ {
				if q := p + j - half; q >= 0 && q < len(row) {
					grad[j] += 2 * diff * float64(row[q])
				}
			}
			grad[m.field] += 2 * diff
			n++
		}
	}
	if n == 0 {
		return 0
	}
	for i := range m.p {
		m.p[i] -= float32(lr * grad[i] / float64(n))
	}
	return loss / float64(n)
}

func (m *Linear) WriteWeights(w io.Writer) error {
	return writeWeights(w, m.Name(), m.intervalLen, m.field, [][]float32{m.p})
}

func (m *Linear) ReadWeights(r io.Reader) error {
	params, err := readWeights(r, m.Name(), m.intervalLen, m.field, 1, len(m.p))
	if err != nil {
		return err
	}
	copy(m.p, params[0])
	return nil
}
