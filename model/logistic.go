package model

import "io"
import "math"

// Logistic is a denoising classification model: a logistic regression over a
// local receptive field producing per-position peak probabilities.
type Logistic struct {
	intervalLen int
	field       int
	p           []float32
}

// NewLogistic builds a logistic model with zero-initialized parameters.
func NewLogistic(intervalLen, field int) *Logistic {
	if field <= 0 {
		field = 1
	}
	return &Logistic{intervalLen: intervalLen, field: field, p: make([]float32, field+1)}
}

func (m *Logistic) Name() string { return "logistic" }

func (m *Logistic) Parameters() [][]float32 { return [][]float32{m.p} }

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func (m *Logistic) forwardRow(row []float32) []float32 {
	out := make([]float32, len(row))
	half := m.field / 2
	for p := range row {
		acc := float64(m.p[m.field])
		for j := 0; j < m.field; j++ {
			if q := p + j - half; q >= 0 && q < len(row) {
				acc += float64(m.p[j]) * float64(row[q])
			}
		}
		out[p] = float32(sigmoid(acc))
	}
	return out
}

func (m *Logistic) Forward(in [][]float32) [][][]float32 {
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

// Step runs one binary-cross-entropy gradient step over the batch. The
// target channel holds 0/1 peak labels.
func (m *Logistic) Step(in [][]float32, target [][][]float32, lr float64) float64 {
	grad := make([]float64, len(m.p))
	var loss float64
	var n int
	half := m.field / 2
	const eps = 1e-7
	for b, row := range in {
		pred := m.forwardRow(row)
		for p := range row {
			y := float64(target[b][p][0])
			pr := math.Min(math.Max(float64(pred[p]), eps), 1-eps)
			if y > 0 {
				loss += -math.Log(pr)
			} else {
				loss += -math.Log(1 - pr)
			}
			dz := pr - y
			for j := 0; j < m.field; j++ {
				if q := p + j - half; q >= 0 && q < len(row) {
					grad[j] += dz * float64(row[q])
				}
			}
			grad[m.field] += dz
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

func (m *Logistic) WriteWeights(w io.Writer) error {
	return writeWeights(w, m.Name(), m.intervalLen, m.field, [][]float32{m.p})
}

func (m *Logistic) ReadWeights(r io.Reader) error {
	params, err := readWeights(r, m.Name(), m.intervalLen, m.field, 1, len(m.p))
	if err != nil {
		return err
	}
	copy(m.p, params[0])
	return nil
}
