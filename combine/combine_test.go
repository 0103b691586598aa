package combine

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func fill(t *testing.T, dir string, n int) string {
	t.Helper()
	var want string
	for i := 0; i < n; i++ {
		content := fmt.Sprintf("part-%02d;", i)
		want += content
		name := filepath.Join(dir, fmt.Sprintf("%05d", i))
		if err := os.WriteFile(name, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return want
}

func reduceAndCheck(t *testing.T, n int) {
	t.Helper()
	dir := t.TempDir()
	want := fill(t, dir, n)

	got, err := Reduce(dir, 4)
	if err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != want {
		t.Errorf("merged content: got %q, want %q", content, want)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("%d files left, want exactly 1", len(entries))
	}
}

func TestReduceEvenCounts(t *testing.T) {
	// 6 and 10 reach an odd intermediate count, which carries the last
	// file to the next pass
	for _, n := range []int{2, 4, 6, 8, 10, 16} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) { reduceAndCheck(t, n) })
	}
}

func TestReduceSingleFile(t *testing.T) {
	reduceAndCheck(t, 1)
}

func TestReduceRejectsOddCounts(t *testing.T) {
	for _, n := range []int{3, 5, 7} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			dir := t.TempDir()
			fill(t, dir, n)
			if _, err := Reduce(dir, 4); err == nil {
				t.Error("odd partial count accepted")
			}
		})
	}
}

func TestReduceSortsByNameNotCreationOrder(t *testing.T) {
	dir := t.TempDir()
	// create in reverse order; merge order must follow names
	for _, name := range []string{"00003", "00001", "00002", "00000"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name+";"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := Reduce(dir, 2)
	if err != nil {
		t.Fatal(err)
	}
	content, _ := os.ReadFile(got)
	if want := "00000;00001;00002;00003;"; string(content) != want {
		t.Errorf("merged content: got %q, want %q", content, want)
	}
}

func TestReduceEmptyDir(t *testing.T) {
	if _, err := Reduce(t.TempDir(), 2); err == nil {
		t.Error("empty directory reduced without error")
	}
}

func TestReduceSkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "00000"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Reduce(dir, 2)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "00000" {
		t.Errorf("survivor: got %s", got)
	}
}
