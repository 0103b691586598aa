// Package datasets implements batch loaders over dataset shard files.
package datasets

import "math/rand"

import "github.com/pkg/errors"

import "github.com/epitrack/denoiser/parallel"

// Source is the record access a loader needs; *shard.Reader and
// *shard.Multi both provide it.
type Source interface {
	Len() int
	IntervalLen() int
	Channels() int
	Record(i int) ([][]float32, error)
}

// Batch is one loader step. Keys are the record's row indices into the
// interval table; they survive sharding and shuffling so inference output
// can be joined back onto genome coordinates.
type Batch struct {
	Keys   []int
	Input  [][]float32
	Target [][][]float32
}

// Loader iterates a shard in batches. In a distributed run each rank sees
// the stride of records congruent to its rank; a single rank sees all.
type Loader struct {
	r         Source
	batchSize int
	rank      int
	world     int
	workers   int
	shuffle   bool
}

// NewLoader builds a loader. workers bounds the concurrent record reads per
// batch; world <= 1 disables sharding.
func NewLoader(r Source, batchSize, rank, world, workers int, shuffle bool) *Loader {
	if batchSize <= 0 {
		batchSize = 1
	}
	if world <= 1 {
		rank, world = 0, 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Loader{r: r, batchSize: batchSize, rank: rank, world: world, workers: workers, shuffle: shuffle}
}

// Indices returns this rank's record indices for an epoch. The seed makes
// the shuffle reproducible per epoch across restarts.
func (l *Loader) Indices(seed int64) []int {
	var idx []int
	for i := l.rank; i < l.r.Len(); i += l.world {
		idx = append(idx, i)
	}
	if l.shuffle {
		rnd := rand.New(rand.NewSource(seed))
		rnd.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}
	return idx
}

// Batches calls fn for every batch of the epoch, in order. A record-read or
// fn error stops the epoch immediately.
func (l *Loader) Batches(seed int64, fn func(Batch) error) error {
	idx := l.Indices(seed)
	targets := l.r.Channels() > 1
	for start := 0; start < len(idx); start += l.batchSize {
		end := start + l.batchSize
		if end > len(idx) {
			end = len(idx)
		}
		keys := idx[start:end]

		batch := Batch{
			Keys:  append([]int(nil), keys...),
			Input: make([][]float32, len(keys)),
		}
		if targets {
			batch.Target = make([][][]float32, len(keys))
		}
		err := parallel.ForEachErr(len(keys), l.workers, func(i int) error {
			rec, err := l.r.Record(keys[i])
			if err != nil {
				return err
			}
			input := make([]float32, len(rec))
			for p := range rec {
				input[p] = rec[p][0]
			}
			batch.Input[i] = input
			if targets {
				tgt := make([][]float32, len(rec))
				for p := range rec {
					tgt[p] = rec[p][1:]
				}
				batch.Target[i] = tgt
			}
			return nil
		})
		if err != nil {
			return errors.Wrap(err, "load batch")
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}
