package worker

// Message is one item on the inference result queue. The queue carries a
// tagged union: score batches while the producer group runs, then a single
// Done once every rank has exited.
type Message interface {
	message()
}

// ScoreBatch is one forward pass worth of results. Keys are row indices
// into the interval table; Scores is [row][position][channel]. Ownership
// transfers to the consumer on push: the producer must not touch either
// slice afterwards.
type ScoreBatch struct {
	Keys   []int
	Scores [][][]float32
}

// Done signals that no further score batches will arrive.
type Done struct{}

func (ScoreBatch) message() {}
func (Done) message()       {}
