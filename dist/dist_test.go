package dist

import (
	"sync"
	"testing"
)

func TestJoinRejectsBadWorlds(t *testing.T) {
	if _, err := Join("tcp://test-bad:1", 1, 0); err == nil {
		t.Error("world size 1 accepted")
	}
	if _, err := Join("tcp://test-bad:2", 2, 5); err == nil {
		t.Error("out-of-world rank accepted")
	}
}

func TestAllReduce(t *testing.T) {
	const url = "tcp://test-allreduce:29500"
	const world = 4
	defer Forget(url)

	var wg sync.WaitGroup
	results := make([][]float32, world)
	for rank := 0; rank < world; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			g, err := Join(url, world, rank)
			if err != nil {
				t.Error(err)
				return
			}
			vec := []float32{float32(rank), 1}
			g.AllReduce(vec, Sum)
			results[rank] = vec
		}(rank)
	}
	wg.Wait()

	for rank, vec := range results {
		if vec == nil {
			t.Fatalf("rank %d produced no result", rank)
		}
		if vec[0] != 6 || vec[1] != 4 {
			t.Errorf("rank %d: got %v, want [6 4]", rank, vec)
		}
	}
}

func TestAllReduceMean(t *testing.T) {
	const url = "tcp://test-mean:29500"
	const world = 2
	defer Forget(url)

	var wg sync.WaitGroup
	results := make([][]float32, world)
	for rank := 0; rank < world; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			g, err := Join(url, world, rank)
			if err != nil {
				t.Error(err)
				return
			}
			vec := []float32{float32(2 * rank)} // 0 and 2
			g.AllReduce(vec, Mean)
			results[rank] = vec
		}(rank)
	}
	wg.Wait()

	for rank, vec := range results {
		if vec[0] != 1 {
			t.Errorf("rank %d: got %v, want [1]", rank, vec)
		}
	}
}

func TestBarrierReusable(t *testing.T) {
	const url = "tcp://test-barrier:29500"
	const world = 3
	const rounds = 50
	defer Forget(url)

	counter := make([]int, world)
	var wg sync.WaitGroup
	for rank := 0; rank < world; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			g, err := Join(url, world, rank)
			if err != nil {
				t.Error(err)
				return
			}
			for i := 0; i < rounds; i++ {
				counter[rank]++
				g.Barrier()
				// after the barrier every rank must have counted i+1
				for r := 0; r < world; r++ {
					if counter[r] < i+1 {
						t.Errorf("rank %d saw counter[%d]=%d before round %d barrier release", rank, r, counter[r], i)
						return
					}
				}
				g.Barrier()
			}
		}(rank)
	}
	wg.Wait()
}

func TestJoinMismatchedWorldSize(t *testing.T) {
	const url = "tcp://test-mismatch:29500"
	defer Forget(url)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := Join(url, 2, 0); err != nil {
			t.Error(err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := Join(url, 2, 1); err != nil {
			t.Error(err)
		}
	}()
	wg.Wait()

	if _, err := Join(url, 3, 2); err == nil {
		t.Error("mismatched world size accepted")
	}
}
