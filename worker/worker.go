// Package worker implements the device-bound worker group that runs
// training, evaluation and inference, one rank per accelerator.
package worker

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/epitrack/denoiser/checkpoint"
	"github.com/epitrack/denoiser/datasets"
	"github.com/epitrack/denoiser/device"
	"github.com/epitrack/denoiser/dist"
	"github.com/epitrack/denoiser/model"
	"github.com/epitrack/denoiser/shard"
)

// Task selects what the worker group runs.
type Task int

const (
	Train Task = iota
	Evaluate
	Infer
)

func (t Task) String() string {
	switch t {
	case Evaluate:
		return "eval"
	case Infer:
		return "infer"
	}
	return "train"
}

// Config is the shared argument block every rank receives.
type Config struct {
	Kind model.Kind

	TrainFiles []string
	ValFiles   []string
	InferFiles []string

	BatchSize   int
	LoadWorkers int

	// Distributed requests a process group; it is force-disabled when only
	// one device is present.
	Distributed   bool
	RendezvousURL string
	// Device is the device index used when running non-distributed.
	Device int

	Epochs    int
	EvalEvery int
	SaveEvery int
	LR        float64
	Field     int
	Threshold float64

	ExpDir         string
	CheckpointBase string
	// WeightsPath is loaded on resume, evaluation and inference.
	WeightsPath string
	Resume      bool

	PrintEvery int

	// Queue receives ScoreBatch messages during inference. The Done message
	// is pushed by the orchestrator after Launch returns, because no single
	// rank knows when its siblings are finished.
	Queue chan<- Message
}

// Distribute applies the world-size-1 limitation of the collective backend:
// with a single device the run is silently forced local, whatever the
// caller requested.
func Distribute(requested bool, deviceCount int) (distributed bool, worldSize int) {
	if deviceCount <= 1 || !requested {
		return false, 1
	}
	return true, deviceCount
}

// Launch runs one task across deviceCount devices and blocks until every
// rank is finished. An error on any rank is fatal to the whole run.
func Launch(task Task, deviceCount int, cfg Config) error {
	if deviceCount <= 0 {
		return errors.New("no accelerator device available, check your machine configuration")
	}
	distributed, worldSize := Distribute(cfg.Distributed, deviceCount)
	logrus.WithFields(logrus.Fields{"task": task.String(), "devices": deviceCount, "world": worldSize}).
		Info("launching worker group")

	if !distributed {
		if err := device.Assert(cfg.Device); err != nil {
			return err
		}
		return runRank(task, cfg, 0, cfg.Device, 1)
	}

	var g errgroup.Group
	for rank := 0; rank < worldSize; rank++ {
		rank := rank
		g.Go(func() error {
			return runRank(task, cfg, rank, rank, worldSize)
		})
	}
	err := g.Wait()
	dist.Forget(cfg.RendezvousURL)
	return err
}

// rankWorker is the per-rank state shared by the task loops.
type rankWorker struct {
	cfg   Config
	rank  int
	world int
	group dist.Group
	model model.Model
	log   *logrus.Entry
}

func runRank(task Task, cfg Config, rank, dev, worldSize int) error {
	release, err := device.Bind(dev)
	if err != nil {
		return err
	}
	defer release()

	w := &rankWorker{
		cfg:   cfg,
		rank:  rank,
		world: worldSize,
		log:   logrus.WithFields(logrus.Fields{"task": task.String(), "rank": rank}),
	}
	if worldSize > 1 {
		group, err := dist.Join(cfg.RendezvousURL, worldSize, rank)
		if err != nil {
			return err
		}
		w.group = group
	}

	var paths []string
	switch task {
	case Train:
		paths = cfg.TrainFiles
	case Evaluate:
		paths = cfg.ValFiles
	case Infer:
		paths = cfg.InferFiles
	}
	src, err := shard.OpenAll(paths)
	if err != nil {
		return err
	}
	defer src.Close()

	w.model = model.ForKind(cfg.Kind, src.IntervalLen(), cfg.Field)
	if cfg.Resume || task == Evaluate || task == Infer {
		epoch, err := checkpoint.Load(cfg.WeightsPath, w.model)
		if err != nil {
			return err
		}
		w.log.WithField("epoch", epoch).Infof("loaded weights from %s", cfg.WeightsPath)
	}

	switch task {
	case Train:
		val, err := shard.OpenAll(cfg.ValFiles)
		if err != nil {
			return err
		}
		defer val.Close()
		return w.trainLoop(src, val)
	case Evaluate:
		loader := datasets.NewLoader(src, cfg.BatchSize, rank, worldSize, cfg.LoadWorkers, false)
		best, err := w.evaluate(loader)
		if err != nil {
			return err
		}
		w.log.Infof("evaluation finished: %s", best)
		return nil
	case Infer:
		loader := datasets.NewLoader(src, cfg.BatchSize, rank, worldSize, cfg.LoadWorkers, false)
		return w.infer(loader)
	}
	return errors.Errorf("unknown task %d", task)
}

// infer runs forward passes over the shard and pushes every score batch to
// the result queue.
func (w *rankWorker) infer(loader *datasets.Loader) error {
	if w.cfg.Queue == nil {
		return errors.New("inference needs a result queue")
	}
	batches := 0
	err := loader.Batches(0, func(b datasets.Batch) error {
		scores := w.model.Forward(b.Input)
		w.cfg.Queue <- ScoreBatch{Keys: b.Keys, Scores: scores}
		batches++
		if w.cfg.PrintEvery > 0 && batches%w.cfg.PrintEvery == 0 {
			w.log.WithField("batches", batches).Info("inference progress")
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "inference")
	}
	w.log.WithField("batches", batches).Info("inference finished")
	return nil
}
