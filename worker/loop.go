package worker

import (
	"github.com/pkg/errors"

	"github.com/epitrack/denoiser/checkpoint"
	"github.com/epitrack/denoiser/datasets"
	"github.com/epitrack/denoiser/dist"
	"github.com/epitrack/denoiser/metrics"
	"github.com/epitrack/denoiser/model"
)

// promotion is rank 0's checkpoint decision at the end of an evaluation.
type promotion struct {
	// NewBest marks a strict improvement of the best metric.
	NewBest bool
	// Save requests a checkpoint write, for either reason.
	Save bool
}

// promote compares an evaluation candidate against the best metric so far.
// The candidate must strictly improve to be promoted; a periodic save
// happens regardless of improvement.
func promote(prev *metrics.Best, cand metrics.Best, epoch, saveEvery int) promotion {
	var p promotion
	p.NewBest = cand.BetterThan(prev)
	p.Save = p.NewBest || (saveEvery > 0 && epoch%saveEvery == 0)
	return p
}

// trainLoop runs the per-epoch state machine: a training pass, a periodic
// evaluation pass, and rank 0's checkpoint bookkeeping. The best metric is
// an explicit value threaded through iterations, not hidden state.
func (w *rankWorker) trainLoop(train, val datasets.Source) error {
	cfg := w.cfg
	evalEvery := cfg.EvalEvery
	if evalEvery <= 0 {
		evalEvery = 1
	}

	trainLoader := datasets.NewLoader(train, cfg.BatchSize, w.rank, w.world, cfg.LoadWorkers, true)
	valLoader := datasets.NewLoader(val, cfg.BatchSize, w.rank, w.world, cfg.LoadWorkers, false)

	var best *metrics.Best
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := w.trainEpoch(trainLoader, epoch); err != nil {
			return errors.Wrapf(err, "epoch %d", epoch)
		}
		if epoch%evalEvery != 0 {
			continue
		}
		cand, err := w.evaluate(valLoader)
		if err != nil {
			return errors.Wrapf(err, "epoch %d evaluation", epoch)
		}
		if w.rank != 0 {
			continue
		}
		p := promote(best, cand, epoch, cfg.SaveEvery)
		if p.NewBest {
			c := cand
			best = &c
			w.log.WithField("epoch", epoch).Infof("new best metric found - %s", best)
		}
		if p.Save {
			if err := checkpoint.Save(cfg.ExpDir, cfg.CheckpointBase, w.model, epoch, p.NewBest); err != nil {
				return errors.Wrapf(err, "epoch %d checkpoint", epoch)
			}
		}
	}
	return nil
}

// trainEpoch advances model parameters over the full shard. In a
// distributed run parameters are averaged across ranks after every step so
// the replicas stay in sync.
func (w *rankWorker) trainEpoch(loader *datasets.Loader, epoch int) error {
	steps := 0
	err := loader.Batches(int64(epoch), func(b datasets.Batch) error {
		if b.Target == nil {
			return errors.New("training shard has no target channels")
		}
		loss := w.model.Step(b.Input, b.Target, w.cfg.LR)
		if w.group != nil {
			for _, p := range w.model.Parameters() {
				w.group.AllReduce(p, dist.Mean)
			}
		}
		steps++
		if w.cfg.PrintEvery > 0 && steps%w.cfg.PrintEvery == 0 {
			w.log.WithFields(map[string]interface{}{"epoch": epoch, "step": steps, "loss": loss}).Info("training")
		}
		return nil
	})
	return err
}

// evaluate runs a full pass over the validation shard without parameter
// updates and returns the best-metric candidate. Fresh metric objects are
// built per call so no state leaks between epochs.
func (w *rankWorker) evaluate(loader *datasets.Loader) (metrics.Best, error) {
	reg, cla, bestMetric := model.MetricsFor(w.cfg.Kind, w.cfg.Threshold)
	channels := w.cfg.Kind.Channels()

	err := loader.Batches(0, func(b datasets.Batch) error {
		if b.Target == nil {
			return errors.New("evaluation shard has no target channels")
		}
		scores := w.model.Forward(b.Input)
		for ci, ch := range channels {
			pred, target := flatten(scores, b.Target, ci)
			set := reg
			if ch == model.Peaks {
				set = cla
			}
			for _, m := range set {
				m.Update(pred, target)
			}
		}
		return nil
	})
	if err != nil {
		return metrics.Best{}, err
	}

	for _, m := range append(append([]metrics.Metric(nil), reg...), cla...) {
		w.log.Infof("%s: %g", m.Name(), m.Value())
	}
	cand := metrics.NewBest(bestMetric)
	if w.group != nil {
		// every rank evaluated a disjoint sub-shard; share the mean
		v := []float32{float32(cand.Value)}
		w.group.AllReduce(v, dist.Mean)
		cand.Value = float64(v[0])
	}
	return cand, nil
}

// flatten collects one channel of a batch as flat prediction/target pairs.
func flatten(scores [][][]float32, target [][][]float32, channel int) (pred, tgt []float64) {
	for b := range scores {
		for p := range scores[b] {
			pred = append(pred, float64(scores[b][p][channel]))
			tgt = append(tgt, float64(target[b][p][channel]))
		}
	}
	return pred, tgt
}
