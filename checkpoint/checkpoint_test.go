package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/epitrack/denoiser/model"
)

func writeGarbage(path string) error {
	return os.WriteFile(path, []byte("not a checkpoint"), 0644)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	m := model.NewLinear(8, 3)
	if err := Save(dir, "model", m, 5, false); err != nil {
		t.Fatal(err)
	}
	back := model.NewLinear(8, 3)
	epoch, err := Load(filepath.Join(dir, Name("model", 5)), back)
	if err != nil {
		t.Fatal(err)
	}
	if epoch != 5 {
		t.Errorf("epoch: got %d, want 5", epoch)
	}
}

func TestSaveBestCopies(t *testing.T) {
	dir := t.TempDir()
	m := model.NewLinear(8, 3)
	if err := Save(dir, "model", m, 2, true); err != nil {
		t.Fatal(err)
	}
	best := model.NewLinear(8, 3)
	epoch, err := Load(filepath.Join(dir, BestName("model")), best)
	if err != nil {
		t.Fatal(err)
	}
	if epoch != 2 {
		t.Errorf("best epoch: got %d, want 2", epoch)
	}
	// the epoch checkpoint is kept, not renamed
	if _, err := Load(filepath.Join(dir, Name("model", 2)), best); err != nil {
		t.Errorf("epoch checkpoint missing after best copy: %v", err)
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	m := model.NewLinear(8, 3)
	for _, epoch := range []int{0, 3, 12, 7} {
		if err := Save(dir, "model", m, epoch, epoch == 7); err != nil {
			t.Fatal(err)
		}
	}
	path, err := Latest(dir, "model")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, Name("model", 12)); path != want {
		t.Errorf("Latest: got %s, want %s", path, want)
	}
	if _, err := Latest(dir, "other"); err == nil {
		t.Error("Latest found checkpoints for unknown base")
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ckpt")
	if err := writeGarbage(path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, model.NewLinear(8, 3)); err == nil {
		t.Error("garbage checkpoint loaded")
	}
}
