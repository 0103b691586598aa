// Package writer drains the inference result queue into genome-coordinate
// bedGraph files, optionally converting them to binary track form at the end.
package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/epitrack/denoiser/bed"
	"github.com/epitrack/denoiser/bigwig"
	"github.com/epitrack/denoiser/combine"
	"github.com/epitrack/denoiser/device"
	"github.com/epitrack/denoiser/model"
	"github.com/epitrack/denoiser/parallel"
	"github.com/epitrack/denoiser/track"
	"github.com/epitrack/denoiser/worker"
)

// pollInterval bounds how long the aggregator sleeps between queue polls
// while no batch is pending.
const pollInterval = 50 * time.Millisecond

// Config drives one aggregator run over one inference shard.
type Config struct {
	// Kind selects which output channels the score batches carry.
	Kind model.Kind
	// Intervals is the coordinate table the batch keys index into.
	Intervals *bed.Table

	// OutDir receives the final per-channel files and the scratch
	// directory used by the pooled path.
	OutDir string
	// Prefix names the output files: <Prefix>.<channel>.bedGraph.
	Prefix string

	// Pool sizes the per-batch conversion pool: 0 converts synchronously
	// in the draining goroutine, -1 auto-sizes to the CPU count capped by
	// the number of row ranges, a positive value is used as given.
	Pool int
	// RowsPerWorker is the fixed row-range size on the pooled path; the
	// last range absorbs the remainder.
	RowsPerWorker int

	// Threshold binarizes the peaks channel when Binarize is set;
	// otherwise peak scores are rounded like track scores.
	Threshold float64
	Binarize  bool

	// TrackDecimals and PeakDecimals set per-channel rounding precision.
	TrackDecimals int
	PeakDecimals  int

	// BigWig converts each finished bedGraph to the binary track format
	// using Sizes. Conversion failures are logged, not fatal.
	BigWig bool
	Sizes  *bed.Sizes

	// InferFiles is the number of input shards feeding the producer
	// group. The aggregator can only attribute keys to one interval
	// table, so any count other than one is a contract violation.
	InferFiles int
}

// OutputPath returns the final bedGraph path for one channel.
func (c Config) OutputPath(ch model.Channel) string {
	return filepath.Join(c.OutDir, c.Prefix+"."+ch.String()+".bedGraph")
}

// Run drains queue until a Done message arrives, writing every score batch
// to the per-channel output files, and returns the paths that received at
// least one record. All batch conversion for one message finishes before
// the next message is drained.
func Run(cfg Config, queue <-chan worker.Message) ([]string, error) {
	if queue == nil {
		return nil, errors.New("writer: no result queue")
	}
	if cfg.Intervals == nil || cfg.Intervals.Len() == 0 {
		return nil, errors.New("writer: empty interval table")
	}
	if cfg.InferFiles != 1 {
		return nil, errors.Errorf("writer: inference needs exactly one input shard, got %d", cfg.InferFiles)
	}

	a := &aggregator{cfg: cfg, channels: cfg.Kind.Channels()}
	if cfg.Pool != 0 {
		a.scratch = filepath.Join(cfg.OutDir, "scratch-"+uuid.NewString())
		if err := os.MkdirAll(a.scratch, 0755); err != nil {
			return nil, errors.Wrap(err, "writer: create scratch dir")
		}
	}

	if err := a.drainAll(queue); err != nil {
		// leave the scratch dir behind for inspection
		return nil, err
	}
	if a.scratch != "" {
		if err := os.RemoveAll(a.scratch); err != nil {
			return nil, errors.Wrap(err, "writer: remove scratch dir")
		}
	}
	return a.finish()
}

type aggregator struct {
	cfg      Config
	channels []model.Channel
	scratch  string
	batches  int
	rows     int
}

func (a *aggregator) drainAll(queue <-chan worker.Message) error {
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for {
		select {
		case msg := <-queue:
			switch m := msg.(type) {
			case worker.Done:
				logrus.WithFields(logrus.Fields{
					"batches": a.batches,
					"rows":    a.rows,
				}).Info("result queue drained")
				return nil
			case worker.ScoreBatch:
				if err := a.drain(m); err != nil {
					return err
				}
			default:
				return errors.Errorf("writer: unknown message %T", msg)
			}
		case <-tick.C:
			// nothing pending, poll again
		}
	}
}

func (a *aggregator) drain(batch worker.ScoreBatch) error {
	rows := len(batch.Keys)
	if rows != len(batch.Scores) {
		return errors.Errorf("writer: %d keys for %d score rows", rows, len(batch.Scores))
	}
	for _, k := range batch.Keys {
		if k < 0 || k >= a.cfg.Intervals.Len() {
			return errors.Errorf("writer: key %d outside interval table of %d rows", k, a.cfg.Intervals.Len())
		}
	}
	a.batches++
	a.rows += rows

	if a.cfg.Pool == 0 {
		return a.drainDirect(batch)
	}
	return a.drainPooled(batch)
}

// drainDirect converts the whole batch in the draining goroutine and
// appends straight to the output files.
func (a *aggregator) drainDirect(batch worker.ScoreBatch) error {
	for ci, ch := range a.channels {
		recs := a.convert(batch, 0, len(batch.Keys), ci, ch)
		if len(recs) == 0 {
			continue
		}
		if err := track.AppendFile(a.cfg.OutputPath(ch), recs); err != nil {
			return errors.Wrapf(err, "writer: append %s channel", ch)
		}
	}
	return nil
}

// drainPooled partitions the batch into row ranges, converts each range in
// its own pool worker writing a private partial file, reduces each
// channel's partials to one, and flushes the survivor onto the output file.
func (a *aggregator) drainPooled(batch worker.ScoreBatch) error {
	rows := len(batch.Keys)
	per := a.cfg.RowsPerWorker
	if per <= 0 {
		per = rows
	}
	ranges := rows / per
	if ranges == 0 {
		ranges = 1
	}
	pool := a.cfg.Pool
	if pool < 0 {
		pool = device.Cores()
		if pool > ranges {
			pool = ranges
		}
	}

	for ci, ch := range a.channels {
		dir := filepath.Join(a.scratch, ch.String())
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "writer: create channel scratch dir")
		}
		err := parallel.ForEachErr(ranges, pool, func(i int) error {
			lo := i * per
			hi := lo + per
			if i == ranges-1 {
				hi = rows
			}
			recs := a.convert(batch, lo, hi, ci, ch)
			if len(recs) == 0 {
				return nil
			}
			return track.AppendFile(filepath.Join(dir, fmt.Sprintf("%05d", i)), recs)
		})
		if err != nil {
			return err
		}
		if err := a.flush(dir, ch, pool); err != nil {
			return err
		}
	}
	return nil
}

// flush reduces one channel's partial files and appends the survivor onto
// the channel's output file, leaving the scratch dir empty for the next
// batch. A batch whose rows all carried no signal leaves no partials and
// writes nothing. Skipped ranges can leave any partial count behind, and
// the combine contract wants an even one, so an odd set is padded with an
// empty sentinel that sorts last.
func (a *aggregator) flush(dir string, ch model.Channel, pool int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrap(err, "writer: list partial files")
	}
	if len(entries) == 0 {
		return nil
	}
	if n := len(entries); n > 1 && n%2 != 0 {
		pad := filepath.Join(dir, entries[n-1].Name()+"~")
		if err := os.WriteFile(pad, nil, 0644); err != nil {
			return errors.Wrap(err, "writer: pad partial files")
		}
	}
	survivor, err := combine.Reduce(dir, pool)
	if err != nil {
		return err
	}
	if err := appendAndRemove(a.cfg.OutputPath(ch), survivor); err != nil {
		return errors.Wrapf(err, "writer: flush %s channel", ch)
	}
	return nil
}

// convert turns rows [lo,hi) of one channel into coordinate records. Rows
// whose transformed scores are all nonpositive are skipped: most genomic
// positions carry no signal and writing them would swamp the output.
func (a *aggregator) convert(batch worker.ScoreBatch, lo, hi, ci int, ch model.Channel) []track.Record {
	var recs []track.Record
	for r := lo; r < hi; r++ {
		scores := channelScores(batch.Scores[r], ci)
		if ch == model.Peaks && a.cfg.Binarize {
			track.Binarize(scores, a.cfg.Threshold)
		} else if ch == model.Peaks {
			track.Round(scores, a.cfg.PeakDecimals)
		} else {
			track.Round(scores, a.cfg.TrackDecimals)
		}
		if !anyPositive(scores) {
			continue
		}
		iv := a.cfg.Intervals.Row(batch.Keys[r])
		recs = append(recs, track.Expand(iv, scores)...)
	}
	return recs
}

// finish reports the output files that exist and runs the optional track
// format conversion on each.
func (a *aggregator) finish() ([]string, error) {
	var written []string
	for _, ch := range a.channels {
		path := a.cfg.OutputPath(ch)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		written = append(written, path)
		if !a.cfg.BigWig || a.cfg.Sizes == nil {
			continue
		}
		out := strings.TrimSuffix(path, ".bedGraph") + ".bw"
		if err := bigwig.FromBedGraph(path, a.cfg.Sizes, out); err != nil {
			logrus.WithError(err).WithField("file", path).Warn("track conversion failed")
			continue
		}
		written = append(written, out)
	}
	return written, nil
}

func channelScores(row [][]float32, ci int) []float64 {
	scores := make([]float64, len(row))
	for p := range row {
		scores[p] = float64(row[p][ci])
	}
	return scores
}

func anyPositive(scores []float64) bool {
	for _, s := range scores {
		if s > 0 {
			return true
		}
	}
	return false
}

func appendAndRemove(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		in.Close()
		return err
	}
	_, err = io.Copy(out, in)
	in.Close()
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Remove(src)
}
