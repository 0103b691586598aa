// Package model implements the denoising model family and its task binding.
package model

import "io"

import "github.com/pkg/errors"

// Kind selects which output family a run produces.
type Kind int

const (
	// Regression denoises the continuous signal track.
	Regression Kind = iota
	// Classification calls peak probabilities.
	Classification
	// Both produces the track and the peak channel together.
	Both
)

// ParseKind parses a task string from configuration.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "regression":
		return Regression, nil
	case "classification":
		return Classification, nil
	case "both":
		return Both, nil
	}
	return 0, errors.Errorf("unknown task %q (want regression, classification or both)", s)
}

func (k Kind) String() string {
	switch k {
	case Regression:
		return "regression"
	case Classification:
		return "classification"
	case Both:
		return "both"
	}
	return "unknown"
}

// Channel is an output signal type.
type Channel int

const (
	// Track is the continuous-value signal channel.
	Track Channel = iota
	// Peaks is the binarized classification channel.
	Peaks
)

func (c Channel) String() string {
	if c == Peaks {
		return "peaks"
	}
	return "track"
}

// Channels returns the output channels a kind produces, in score-array order.
func (k Kind) Channels() []Channel {
	switch k {
	case Classification:
		return []Channel{Peaks}
	case Both:
		return []Channel{Track, Peaks}
	default:
		return []Channel{Track}
	}
}

// Model is a denoising model over fixed-length signal intervals.
//
// Forward maps a batch of [position] input rows to [position][channel]
// scores. Step runs one training update at the given learning rate and
// returns the batch loss. Parameters exposes the flat parameter slices so a
// distributed run can average them in place across ranks.
type Model interface {
	Name() string
	Forward(in [][]float32) [][][]float32
	Step(in [][]float32, target [][][]float32, lr float64) float64
	Parameters() [][]float32
	WriteWeights(w io.Writer) error
	ReadWeights(r io.Reader) error
}

// ForKind resolves the kind to a model once at startup. field is the local
// receptive field width; intervalLen is read from the dataset shard.
func ForKind(kind Kind, intervalLen, field int) Model {
	switch kind {
	case Classification:
		return NewLogistic(intervalLen, field)
	case Both:
		return &both{lin: NewLinear(intervalLen, field), log: NewLogistic(intervalLen, field)}
	default:
		return NewLinear(intervalLen, field)
	}
}

// TargetChannels returns how many target channels a training shard must
// carry after the input channel.
func (k Kind) TargetChannels() int {
	if k == Both {
		return 2
	}
	return 1
}
