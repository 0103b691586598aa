package metrics

import (
	"math"
	"testing"
)

func almost(t *testing.T, got, want float64, name string) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: got %g, want %g", name, got, want)
	}
}

func TestMSE(t *testing.T) {
	var m MSE
	m.Update([]float64{1, 2}, []float64{0, 0})
	m.Update([]float64{3}, []float64{3})
	almost(t, m.Value(), 5.0/3, "mse")
	m.Reset()
	almost(t, m.Value(), 0, "mse after reset")
}

func TestCorrCoef(t *testing.T) {
	var m CorrCoef
	m.Update([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
	almost(t, m.Value(), 1, "perfect correlation")

	m.Reset()
	m.Update([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
	almost(t, m.Value(), -1, "perfect anticorrelation")

	m.Reset()
	m.Update([]float64{1, 1, 1}, []float64{1, 2, 3})
	almost(t, m.Value(), 0, "constant predictions")
}

func TestBCE(t *testing.T) {
	var m BCE
	m.Update([]float64{0.5, 0.5}, []float64{1, 0})
	almost(t, m.Value(), -math.Log(0.5), "bce at 0.5")
}

func TestRecallSpecificity(t *testing.T) {
	r := &Recall{Threshold: 0.5}
	s := &Specificity{Threshold: 0.5}
	pred := []float64{0.9, 0.2, 0.7, 0.4}
	target := []float64{1, 1, 0, 0}
	r.Update(pred, target)
	s.Update(pred, target)
	almost(t, r.Value(), 0.5, "recall")
	almost(t, s.Value(), 0.5, "specificity")
}

func TestAUROC(t *testing.T) {
	var m AUROC
	m.Update([]float64{0.1, 0.2, 0.8, 0.9}, []float64{0, 0, 1, 1})
	almost(t, m.Value(), 1, "perfect ranking")

	m.Reset()
	m.Update([]float64{0.9, 0.8, 0.2, 0.1}, []float64{0, 0, 1, 1})
	almost(t, m.Value(), 0, "inverted ranking")

	m.Reset()
	m.Update([]float64{0.5, 0.5, 0.5, 0.5}, []float64{0, 1, 0, 1})
	almost(t, m.Value(), 0.5, "ties")
}

func TestBestBetterThan(t *testing.T) {
	auroc := Best{Name: "auroc", Value: 0.8, Larger: true}
	if !auroc.BetterThan(nil) {
		t.Error("first candidate must beat nil")
	}
	prev := Best{Name: "auroc", Value: 0.8, Larger: true}
	if auroc.BetterThan(&prev) {
		t.Error("equal value must not be strictly better")
	}
	higher := Best{Name: "auroc", Value: 0.81, Larger: true}
	if !higher.BetterThan(&prev) {
		t.Error("higher auroc must win")
	}

	mse := NewBest(&MSE{sum: 4, n: 2})
	if mse.Larger {
		t.Error("mse must order lower-is-better")
	}
	lower := Best{Name: "mse", Value: 1, Larger: false}
	if !lower.BetterThan(&mse) {
		t.Error("lower mse must win")
	}
}
