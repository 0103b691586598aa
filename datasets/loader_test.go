package datasets

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/epitrack/denoiser/shard"
)

func testShard(t *testing.T, records, length, channels int) *shard.Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.shard")
	w, err := shard.Create(path, length, channels)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < records; i++ {
		rec := make([][]float32, length)
		for p := range rec {
			rec[p] = make([]float32, channels)
			for c := range rec[p] {
				rec[p][c] = float32(i*100 + p*10 + c)
			}
		}
		if err := w.Append(rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	r, err := shard.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestShardingCoversDisjointly(t *testing.T) {
	r := testShard(t, 10, 2, 1)
	const world = 3
	seen := make(map[int]int)
	for rank := 0; rank < world; rank++ {
		l := NewLoader(r, 4, rank, world, 2, false)
		for _, i := range l.Indices(0) {
			seen[i]++
		}
	}
	if len(seen) != 10 {
		t.Fatalf("coverage: got %d records, want 10", len(seen))
	}
	for i, n := range seen {
		if n != 1 {
			t.Errorf("record %d seen %d times", i, n)
		}
	}
}

func TestBatchesPreserveKeys(t *testing.T) {
	r := testShard(t, 7, 2, 1)
	l := NewLoader(r, 3, 0, 1, 2, false)
	var keys []int
	var sizes []int
	err := l.Batches(0, func(b Batch) error {
		keys = append(keys, b.Keys...)
		sizes = append(sizes, len(b.Keys))
		if b.Target != nil {
			t.Error("input-only shard produced targets")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, k := range keys {
		if i != k {
			t.Fatalf("keys out of order: %v", keys)
		}
	}
	want := []int{3, 3, 1}
	if len(sizes) != len(want) {
		t.Fatalf("batch count: got %v", sizes)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("batch %d size: got %d, want %d", i, sizes[i], want[i])
		}
	}
}

func TestBatchesSplitTargets(t *testing.T) {
	r := testShard(t, 2, 3, 2)
	l := NewLoader(r, 2, 0, 1, 1, false)
	err := l.Batches(0, func(b Batch) error {
		if b.Target == nil {
			t.Fatal("training shard produced no targets")
		}
		// record i position p channel c carries i*100+p*10+c
		if got, want := b.Input[1][2], float32(120); got != want {
			t.Errorf("input: got %g, want %g", got, want)
		}
		if got, want := b.Target[1][2][0], float32(121); got != want {
			t.Errorf("target: got %g, want %g", got, want)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestShuffleIsSeededAndComplete(t *testing.T) {
	r := testShard(t, 20, 2, 1)
	l := NewLoader(r, 5, 0, 1, 1, true)
	a := l.Indices(7)
	b := l.Indices(7)
	c := l.Indices(8)

	if len(a) != 20 {
		t.Fatalf("shuffled length: %d", len(a))
	}
	same := true
	differs := false
	for i := range a {
		if a[i] != b[i] {
			same = false
		}
		if a[i] != c[i] {
			differs = true
		}
	}
	if !same {
		t.Error("same seed produced different order")
	}
	if !differs {
		t.Error("different seeds produced identical order")
	}
	sorted := append([]int(nil), a...)
	sort.Ints(sorted)
	for i, v := range sorted {
		if i != v {
			t.Fatalf("shuffle lost records: %v", sorted)
		}
	}
}
