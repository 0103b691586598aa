// Package dist implements the collective process group used by distributed
// ranks: rendezvous by URL and world size, barriers, and in-place
// all-reduce for gradient averaging and metric reduction.
package dist

import (
	"sync"

	"github.com/pkg/errors"
)

// Op selects the all-reduce combination.
type Op int

const (
	// Sum leaves the element-wise sum on every rank.
	Sum Op = iota
	// Mean leaves the element-wise mean on every rank.
	Mean
)

// Group is one rank's handle on a process group.
type Group interface {
	Rank() int
	WorldSize() int
	// Barrier blocks until every rank in the group reaches it.
	Barrier()
	// AllReduce combines vec element-wise across all ranks, in place.
	// Every rank must pass a vector of the same length.
	AllReduce(vec []float32, op Op)
}

// world is the in-process backend shared by the ranks that joined one URL.
type world struct {
	size   int
	joined int

	mu   sync.Mutex
	cond *sync.Cond
	// barrier state, generation-counted so it can be reused
	arrived int
	gen     int
	// all-reduce exchange slots, one per rank
	slots [][]float32
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]*world)
)

// Join enters the process group identified by url with the given world size
// and rank. It blocks until all ranks have joined; there is no timeout, a
// missing rank hangs the rendezvous. World size 1 is rejected: callers must
// run non-distributed instead.
func Join(url string, worldSize, rank int) (Group, error) {
	if worldSize < 2 {
		return nil, errors.Errorf("world size %d: distributed needs at least 2 ranks", worldSize)
	}
	if rank < 0 || rank >= worldSize {
		return nil, errors.Errorf("rank %d outside world of size %d", rank, worldSize)
	}

	registryMu.Lock()
	w, ok := registry[url]
	if !ok {
		w = &world{size: worldSize, slots: make([][]float32, worldSize)}
		w.cond = sync.NewCond(&w.mu)
		registry[url] = w
	}
	registryMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.size != worldSize {
		return nil, errors.Errorf("rendezvous %s already formed with world size %d", url, w.size)
	}
	if w.joined >= w.size {
		return nil, errors.Errorf("rendezvous %s already has %d ranks", url, w.size)
	}
	w.joined++
	w.cond.Broadcast()
	for w.joined < w.size {
		w.cond.Wait()
	}
	return &member{w: w, rank: rank}, nil
}

// Forget drops the rendezvous registration for url so a later run can form
// a fresh group under the same address.
func Forget(url string) {
	registryMu.Lock()
	delete(registry, url)
	registryMu.Unlock()
}

type member struct {
	w    *world
	rank int
}

func (m *member) Rank() int      { return m.rank }
func (m *member) WorldSize() int { return m.w.size }

func (m *member) Barrier() {
	w := m.w
	w.mu.Lock()
	gen := w.gen
	w.arrived++
	if w.arrived == w.size {
		w.arrived = 0
		w.gen++
		w.cond.Broadcast()
	} else {
		for gen == w.gen {
			w.cond.Wait()
		}
	}
	w.mu.Unlock()
}

func (m *member) AllReduce(vec []float32, op Op) {
	w := m.w
	w.mu.Lock()
	w.slots[m.rank] = vec
	w.mu.Unlock()

	// everyone has deposited after this point
	m.Barrier()

	// deterministic combination order, same on every rank
	sum := make([]float32, len(vec))
	w.mu.Lock()
	for _, slot := range w.slots {
		for i, v := range slot {
			sum[i] += v
		}
	}
	w.mu.Unlock()
	if op == Mean {
		inv := 1 / float32(w.size)
		for i := range sum {
			sum[i] *= inv
		}
	}

	// all ranks are done reading the slots before any writes back
	m.Barrier()
	copy(vec, sum)
	m.Barrier()
}
