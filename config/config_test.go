package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exp.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
label: dsc-atac
model: both
epochs: 5
train_files: [a.shard, b.shard]
bigwig: true
`)
	exp, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Label != "dsc-atac" || exp.Model != "both" || exp.Epochs != 5 {
		t.Errorf("overridden fields: %+v", exp)
	}
	if len(exp.TrainFiles) != 2 || exp.TrainFiles[1] != "b.shard" {
		t.Errorf("train files: %v", exp.TrainFiles)
	}
	if !exp.BigWig {
		t.Error("bigwig not set")
	}
	// untouched keys keep their defaults
	if exp.BatchSize != 64 || exp.Threshold != 0.5 || exp.Pool != -1 {
		t.Errorf("default fields changed: %+v", exp)
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeFile(t, "epocs: 5\n")
	if _, err := Load(path); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestDefaultIsComplete(t *testing.T) {
	exp := Default()
	if exp.Model == "" || exp.Epochs <= 0 || exp.QueueDepth <= 0 || exp.RowsPerWorker <= 0 {
		t.Errorf("defaults incomplete: %+v", exp)
	}
}
