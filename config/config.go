// Package config loads experiment files. An experiment file carries the
// same settings as the command-line flags; explicitly set flags win over
// file values.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Experiment is one experiment's full setting block.
type Experiment struct {
	Label   string `yaml:"label"`
	OutHome string `yaml:"out_home"`

	Model     string  `yaml:"model"`
	Field     int     `yaml:"field"`
	Threshold float64 `yaml:"threshold"`

	TrainFiles []string `yaml:"train_files"`
	ValFiles   []string `yaml:"val_files"`
	InferFiles []string `yaml:"infer_files"`
	Intervals  string   `yaml:"intervals"`
	Sizes      string   `yaml:"sizes"`

	BatchSize   int     `yaml:"batch_size"`
	LoadWorkers int     `yaml:"load_workers"`
	Epochs      int     `yaml:"epochs"`
	EvalEvery   int     `yaml:"eval_every"`
	SaveEvery   int     `yaml:"save_every"`
	LR          float64 `yaml:"lr"`
	PrintEvery  int     `yaml:"print_every"`

	Distributed bool   `yaml:"distributed"`
	Rendezvous  string `yaml:"rendezvous"`
	Device      int    `yaml:"device"`

	Weights string `yaml:"weights"`

	Pool          int  `yaml:"writer_pool"`
	RowsPerWorker int  `yaml:"rows_per_worker"`
	TrackDecimals int  `yaml:"track_decimals"`
	PeakDecimals  int  `yaml:"peak_decimals"`
	BigWig        bool `yaml:"bigwig"`
	QueueDepth    int  `yaml:"queue_depth"`
}

// Default returns the settings used when neither a file value nor a flag
// is given.
func Default() Experiment {
	return Experiment{
		Label:         "experiment",
		OutHome:       ".",
		Model:         "regression",
		Field:         51,
		Threshold:     0.5,
		BatchSize:     64,
		LoadWorkers:   4,
		Epochs:        25,
		EvalEvery:     1,
		SaveEvery:     5,
		LR:            0.01,
		PrintEvery:    50,
		Rendezvous:    "local://denoiser",
		Pool:          -1,
		RowsPerWorker: 16,
		TrackDecimals: 3,
		PeakDecimals:  3,
		QueueDepth:    64,
	}
}

// Load reads path over the defaults. Unknown keys are an error so a typo
// never falls back to a default silently.
func Load(path string) (Experiment, error) {
	exp := Default()
	f, err := os.Open(path)
	if err != nil {
		return exp, errors.Wrap(err, "open experiment file")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&exp); err != nil {
		return exp, errors.Wrapf(err, "parse experiment file %s", path)
	}
	return exp, nil
}
