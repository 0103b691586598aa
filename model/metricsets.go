package model

import "github.com/epitrack/denoiser/metrics"

// MetricsFor returns the regression and classification metric sets for a
// kind, plus the metric whose value decides checkpoint promotion. The
// binding is resolved once at startup, not re-dispatched per call.
func MetricsFor(kind Kind, threshold float64) (reg, cla []metrics.Metric, best metrics.Metric) {
	switch kind {
	case Regression:
		reg = []metrics.Metric{&metrics.MSE{}, &metrics.CorrCoef{}}
		best = reg[len(reg)-1]
	case Classification:
		cla = []metrics.Metric{
			&metrics.BCE{},
			&metrics.Recall{Threshold: threshold},
			&metrics.Specificity{Threshold: threshold},
			&metrics.AUROC{},
		}
		best = cla[len(cla)-1]
	case Both:
		reg = []metrics.Metric{&metrics.MSE{}, &metrics.CorrCoef{}}
		cla = []metrics.Metric{
			&metrics.BCE{},
			&metrics.Recall{Threshold: threshold},
			&metrics.Specificity{Threshold: threshold},
			&metrics.AUROC{},
		}
		best = cla[len(cla)-1]
	}
	return reg, cla, best
}
