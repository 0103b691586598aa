package model

import "io"

// both pairs the regression and classification models so a run can produce
// the track and peak channels together.
type both struct {
	lin *Linear
	log *Logistic
}

func (m *both) Name() string { return "both" }

func (m *both) Parameters() [][]float32 {
	return append(m.lin.Parameters(), m.log.Parameters()...)
}

func (m *both) Forward(in [][]float32) [][][]float32 {
	out := make([][][]float32, len(in))
	for b, row := range in {
		reg := m.lin.forwardRow(row)
		cla := m.log.forwardRow(row)
		cols := make([][]float32, len(row))
		for p := range row {
			cols[p] = []float32{reg[p], cla[p]}
		}
		out[b] = cols
	}
	return out
}

func (m *both) Step(in [][]float32, target [][][]float32, lr float64) float64 {
	regT := make([][][]float32, len(target))
	claT := make([][][]float32, len(target))
	for b := range target {
		regT[b] = make([][]float32, len(target[b]))
		claT[b] = make([][]float32, len(target[b]))
		for p := range target[b] {
			regT[b][p] = target[b][p][0:1]
			claT[b][p] = target[b][p][1:2]
		}
	}
	return m.lin.Step(in, regT, lr) + m.log.Step(in, claT, lr)
}

func (m *both) WriteWeights(w io.Writer) error {
	return writeWeights(w, m.Name(), m.lin.intervalLen, m.lin.field, append(m.lin.Parameters(), m.log.Parameters()...))
}

func (m *both) ReadWeights(r io.Reader) error {
	params, err := readWeights(r, m.Name(), m.lin.intervalLen, m.lin.field, 2, len(m.lin.p))
	if err != nil {
		return err
	}
	copy(m.lin.p, params[0])
	copy(m.log.p, params[1])
	return nil
}
