// Package metrics implements evaluation metrics for denoising models.
package metrics

import "math"
import "sort"

// Metric accumulates a score over (prediction, target) pairs.
type Metric interface {
	Name() string
	Update(pred, target []float64)
	Value() float64
	Reset()
}

// MSE is the mean squared error over all positions seen.
type MSE struct {
	sum float64
	n   int
}

func (m *MSE) Name() string { return "mse" }

func (m *MSE) Update(pred, target []float64) {
	for i := range pred {
		d := pred[i] - target[i]
		m.sum += d * d
	}
	m.n += len(pred)
}

func (m *MSE) Value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

func (m *MSE) Reset() { *m = MSE{} }

// CorrCoef is the Pearson correlation between predictions and targets.
type CorrCoef struct {
	n                 int
	sumX, sumY, sumXY float64
	sumXX, sumYY      float64
}

func (m *CorrCoef) Name() string { return "corrcoef" }

func (m *CorrCoef) Update(pred, target []float64) {
	for i := range pred {
		x, y := pred[i], target[i]
		m.sumX += x
		m.sumY += y
		m.sumXY += x * y
		m.sumXX += x * x
		m.sumYY += y * y
	}
	m.n += len(pred)
}

func (m *CorrCoef) Value() float64 {
	if m.n == 0 {
		return 0
	}
	n := float64(m.n)
	cov := m.sumXY - m.sumX*m.sumY/n
	varX := m.sumXX - m.sumX*m.sumX/n
	varY := m.sumYY - m.sumY*m.sumY/n
	if varX <= 0 || varY <= 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

func (m *CorrCoef) Reset() { *m = CorrCoef{} }

// BCE is the mean binary cross entropy; predictions are probabilities.
type BCE struct {
	sum float64
	n   int
}

func (m *BCE) Name() string { return "bce" }

func (m *BCE) Update(pred, target []float64) {
	const eps = 1e-7
	for i := range pred {
		p := math.Min(math.Max(pred[i], eps), 1-eps)
		if target[i] > 0 {
			m.sum += -math.Log(p)
		} else {
			m.sum += -math.Log(1 - p)
		}
	}
	m.n += len(pred)
}

func (m *BCE) Value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

func (m *BCE) Reset() { *m = BCE{} }

// Recall is true positives over actual positives at a probability threshold.
type Recall struct {
	Threshold float64
	tp, fn    int
}

func (m *Recall) Name() string { return "recall" }

func (m *Recall) Update(pred, target []float64) {
	for i := range pred {
		if target[i] > 0 {
			if pred[i] > m.Threshold {
				m.tp++
			} else {
				m.fn++
			}
		}
	}
}

func (m *Recall) Value() float64 {
	if m.tp+m.fn == 0 {
		return 0
	}
	return float64(m.tp) / float64(m.tp+m.fn)
}

func (m *Recall) Reset() { m.tp, m.fn = 0, 0 }

// Specificity is true negatives over actual negatives at a probability
// threshold.
type Specificity struct {
	Threshold float64
	tn, fp    int
}

func (m *Specificity) Name() string { return "specificity" }

func (m *Specificity) Update(pred, target []float64) {
	for i := range pred {
		if target[i] <= 0 {
			if pred[i] > m.Threshold {
				m.fp++
			} else {
				m.tn++
			}
		}
	}
}

func (m *Specificity) Value() float64 {
	if m.tn+m.fp == 0 {
		return 0
	}
	return float64(m.tn) / float64(m.tn+m.fp)
}

func (m *Specificity) Reset() { m.tn, m.fp = 0, 0 }

// AUROC is the area under the ROC curve. It buffers scores, so it is meant
// for bounded validation passes, not unbounded streams.
type AUROC struct {
	scores []float64
	labels []bool
}

func (m *AUROC) Name() string { return "auroc" }

func (m *AUROC) Update(pred, target []float64) {
	for i := range pred {
		m.scores = append(m.scores, pred[i])
		m.labels = append(m.labels, target[i] > 0)
	}
}

func (m *AUROC) Value() float64 {
	type pair struct {
		score float64
		pos   bool
	}
	pairs := make([]pair, len(m.scores))
	var pos, neg int
	for i := range m.scores {
		pairs[i] = pair{m.scores[i], m.labels[i]}
		if m.labels[i] {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	// rank-sum (Mann-Whitney) formulation with tie averaging
	var rankSum float64
	i := 0
	for i < len(pairs) {
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if pairs[k].pos {
				rankSum += avgRank
			}
		}
		i = j
	}
	return (rankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg))
}

func (m *AUROC) Reset() { m.scores, m.labels = nil, nil }
