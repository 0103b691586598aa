package metrics

import "fmt"

// Best is the evaluation scalar used to decide checkpoint promotion. Larger
// records the metric's ordering direction, since higher-is-better and
// lower-is-better metrics coexist.
type Best struct {
	Name   string
	Value  float64
	Larger bool
}

// BetterThan reports whether b strictly improves on prev. A nil prev means
// no evaluation has completed yet, so any candidate is an improvement.
func (b Best) BetterThan(prev *Best) bool {
	if prev == nil {
		return true
	}
	if b.Larger {
		return b.Value > prev.Value
	}
	return b.Value < prev.Value
}

func (b Best) String() string {
	return fmt.Sprintf("%s=%g", b.Name, b.Value)
}

// larger maps metric names to their ordering direction.
func larger(name string) bool {
	switch name {
	case "mse", "bce":
		return false
	default:
		return true
	}
}

// NewBest captures the current value of m as a promotion candidate.
func NewBest(m Metric) Best {
	return Best{Name: m.Name(), Value: m.Value(), Larger: larger(m.Name())}
}
