package main

import "flag"
import "fmt"
import "os"
import "path/filepath"
import "sort"
import "strings"
import "time"

import "github.com/sirupsen/logrus"

import "github.com/epitrack/denoiser/bed"
import "github.com/epitrack/denoiser/checkpoint"
import "github.com/epitrack/denoiser/config"
import "github.com/epitrack/denoiser/device"
import "github.com/epitrack/denoiser/model"
import "github.com/epitrack/denoiser/shard"
import "github.com/epitrack/denoiser/worker"
import "github.com/epitrack/denoiser/writer"

func main() {
	exp := config.Default()

	cfgPath := flag.String("config", "", "experiment file (yaml); explicit flags win over file values")
	train := flag.Bool("train", false, "train a model")
	eval := flag.Bool("eval", false, "evaluate a model on the validation shards")
	infer := flag.Bool("infer", false, "denoise the inference shards")
	resume := flag.Bool("resume", false, "resume training from the latest checkpoint")
	binarize := flag.Bool("binarize", false, "binarize the peaks channel at -threshold")

	flag.StringVar(&exp.Label, "label", exp.Label, "experiment label")
	flag.StringVar(&exp.OutHome, "out_home", exp.OutHome, "parent directory for experiment output")
	flag.StringVar(&exp.Model, "model", exp.Model, "model kind: regression, classification or both")
	flag.IntVar(&exp.Field, "field", exp.Field, "receptive field width (odd)")
	flag.Float64Var(&exp.Threshold, "threshold", exp.Threshold, "peak binarization threshold")
	trainFiles := flag.String("train_files", "", "comma-separated training shards")
	valFiles := flag.String("val_files", "", "comma-separated validation shards")
	inferFiles := flag.String("infer_files", "", "comma-separated inference shards")
	flag.StringVar(&exp.Intervals, "intervals", exp.Intervals, "interval table for inference output")
	flag.StringVar(&exp.Sizes, "sizes", exp.Sizes, "chromosome sizes file")
	flag.IntVar(&exp.BatchSize, "batch_size", exp.BatchSize, "rows per batch")
	flag.IntVar(&exp.LoadWorkers, "load_workers", exp.LoadWorkers, "concurrent record readers per rank")
	flag.IntVar(&exp.Epochs, "epochs", exp.Epochs, "training epochs")
	flag.IntVar(&exp.EvalEvery, "eval_every", exp.EvalEvery, "epochs between validation passes")
	flag.IntVar(&exp.SaveEvery, "save_every", exp.SaveEvery, "epochs between periodic checkpoints")
	flag.Float64Var(&exp.LR, "lr", exp.LR, "learning rate")
	flag.IntVar(&exp.PrintEvery, "print_every", exp.PrintEvery, "batches between progress lines")
	flag.BoolVar(&exp.Distributed, "distributed", exp.Distributed, "one rank per device with gradient averaging")
	flag.StringVar(&exp.Rendezvous, "rendezvous", exp.Rendezvous, "process group rendezvous url")
	flag.IntVar(&exp.Device, "device", exp.Device, "device index for non-distributed runs")
	flag.StringVar(&exp.Weights, "weights", exp.Weights, "weights file to load for resume, eval or infer")
	flag.IntVar(&exp.Pool, "pool", exp.Pool, "writer pool size: 0 synchronous, -1 auto")
	flag.IntVar(&exp.RowsPerWorker, "rows_per_worker", exp.RowsPerWorker, "batch rows per writer pool job")
	flag.IntVar(&exp.TrackDecimals, "track_decimals", exp.TrackDecimals, "track score rounding")
	flag.IntVar(&exp.PeakDecimals, "peak_decimals", exp.PeakDecimals, "peak score rounding")
	flag.BoolVar(&exp.BigWig, "bigwig", exp.BigWig, "convert final bedGraph files to binary track form")
	flag.IntVar(&exp.QueueDepth, "queue_depth", exp.QueueDepth, "result queue capacity")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *cfgPath != "" {
		merge(&exp, *cfgPath)
	}
	if *trainFiles != "" {
		exp.TrainFiles = splitList(*trainFiles)
	}
	if *valFiles != "" {
		exp.ValFiles = splitList(*valFiles)
	}
	if *inferFiles != "" {
		exp.InferFiles = splitList(*inferFiles)
	}

	if !*train && !*eval && !*infer {
		logrus.Fatal("nothing to do: pass -train, -eval or -infer")
	}

	kind, err := model.ParseKind(exp.Model)
	if err != nil {
		logrus.Fatal(err)
	}
	if err := device.CheckAvailable(); err != nil {
		logrus.Fatal(err)
	}
	deviceCount := device.Count()

	expDir := filepath.Join(exp.OutHome, fmt.Sprintf("%s_%s", exp.Label, time.Now().Format("2006.01.02_15.04")))
	if err := os.MkdirAll(expDir, 0755); err != nil {
		logrus.Fatal(err)
	}
	logrus.WithField("dir", expDir).Info("experiment directory")

	cfg := worker.Config{
		Kind:           kind,
		TrainFiles:     exp.TrainFiles,
		ValFiles:       exp.ValFiles,
		BatchSize:      exp.BatchSize,
		LoadWorkers:    exp.LoadWorkers,
		Distributed:    exp.Distributed,
		RendezvousURL:  exp.Rendezvous,
		Device:         exp.Device,
		Epochs:         exp.Epochs,
		EvalEvery:      exp.EvalEvery,
		SaveEvery:      exp.SaveEvery,
		LR:             exp.LR,
		Field:          exp.Field,
		Threshold:      exp.Threshold,
		ExpDir:         expDir,
		CheckpointBase: exp.Label,
		WeightsPath:    exp.Weights,
		PrintEvery:     exp.PrintEvery,
	}

	switch {
	case *train:
		if *resume && cfg.WeightsPath == "" {
			cfg.WeightsPath = latestWeights(exp.OutHome, exp.Label)
		}
		cfg.Resume = *resume
		if err := worker.Launch(worker.Train, deviceCount, cfg); err != nil {
			logrus.Fatal(err)
		}

	case *eval:
		if cfg.WeightsPath == "" {
			logrus.Fatal("eval needs -weights")
		}
		if err := worker.Launch(worker.Evaluate, deviceCount, cfg); err != nil {
			logrus.Fatal(err)
		}

	case *infer:
		if cfg.WeightsPath == "" {
			logrus.Fatal("infer needs -weights")
		}
		runInference(exp, cfg, kind, deviceCount, expDir, *binarize)
	}
}

// runInference denoises each inference shard in turn, with the worker group
// producing score batches and a writer draining them into per-channel track
// files named after the shard.
func runInference(exp config.Experiment, cfg worker.Config, kind model.Kind, deviceCount int, expDir string, binarize bool) {
	if len(exp.InferFiles) == 0 {
		logrus.Fatal("infer needs -infer_files")
	}
	if exp.Intervals == "" {
		logrus.Fatal("infer needs -intervals")
	}
	table, err := bed.ReadIntervals(exp.Intervals)
	if err != nil {
		logrus.Fatal(err)
	}
	var sizes *bed.Sizes
	if exp.Sizes != "" {
		if sizes, err = bed.ReadSizes(exp.Sizes); err != nil {
			logrus.Fatal(err)
		}
	}
	if exp.BigWig && sizes == nil {
		logrus.Fatal("-bigwig needs -sizes")
	}

	for _, file := range exp.InferFiles {
		checkCompatible(file, table, sizes)

		queue := make(chan worker.Message, exp.QueueDepth)
		wcfg := writer.Config{
			Kind:          kind,
			Intervals:     table,
			OutDir:        expDir,
			Prefix:        prefix(file),
			Pool:          exp.Pool,
			RowsPerWorker: exp.RowsPerWorker,
			Threshold:     exp.Threshold,
			Binarize:      binarize,
			TrackDecimals: exp.TrackDecimals,
			PeakDecimals:  exp.PeakDecimals,
			BigWig:        exp.BigWig,
			Sizes:         sizes,
			InferFiles:    1,
		}
		done := make(chan error, 1)
		var written []string
		go func() {
			var werr error
			written, werr = writer.Run(wcfg, queue)
			done <- werr
		}()

		cfg.InferFiles = []string{file}
		cfg.Queue = queue
		err := worker.Launch(worker.Infer, deviceCount, cfg)
		queue <- worker.Done{}
		if werr := <-done; err == nil {
			err = werr
		}
		if err != nil {
			logrus.Fatal(err)
		}
		logrus.WithFields(logrus.Fields{"shard": file, "files": written}).Info("inference output written")
	}
}

// checkCompatible validates the interval table against the shard geometry
// and the sizes file before any worker starts.
func checkCompatible(file string, table *bed.Table, sizes *bed.Sizes) {
	r, err := shard.Open(file)
	if err != nil {
		logrus.Fatal(err)
	}
	records := r.Len()
	r.Close()
	if sizes != nil {
		if err := bed.Check(table, sizes, records); err != nil {
			logrus.WithField("shard", file).Fatal(err)
		}
	} else if table.Len() != records {
		logrus.Fatalf("shard %s has %d records for %d intervals", file, records, table.Len())
	}
}

// merge overlays file values onto exp for every flag the user did not set
// explicitly.
func merge(exp *config.Experiment, path string) {
	file, err := config.Load(path)
	if err != nil {
		logrus.Fatal(err)
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	keep := *exp
	*exp = file
	if set["label"] {
		exp.Label = keep.Label
	}
	if set["out_home"] {
		exp.OutHome = keep.OutHome
	}
	if set["model"] {
		exp.Model = keep.Model
	}
	if set["field"] {
		exp.Field = keep.Field
	}
	if set["threshold"] {
		exp.Threshold = keep.Threshold
	}
	if set["intervals"] {
		exp.Intervals = keep.Intervals
	}
	if set["sizes"] {
		exp.Sizes = keep.Sizes
	}
	if set["batch_size"] {
		exp.BatchSize = keep.BatchSize
	}
	if set["load_workers"] {
		exp.LoadWorkers = keep.LoadWorkers
	}
	if set["epochs"] {
		exp.Epochs = keep.Epochs
	}
	if set["eval_every"] {
		exp.EvalEvery = keep.EvalEvery
	}
	if set["save_every"] {
		exp.SaveEvery = keep.SaveEvery
	}
	if set["lr"] {
		exp.LR = keep.LR
	}
	if set["print_every"] {
		exp.PrintEvery = keep.PrintEvery
	}
	if set["distributed"] {
		exp.Distributed = keep.Distributed
	}
	if set["rendezvous"] {
		exp.Rendezvous = keep.Rendezvous
	}
	if set["device"] {
		exp.Device = keep.Device
	}
	if set["weights"] {
		exp.Weights = keep.Weights
	}
	if set["pool"] {
		exp.Pool = keep.Pool
	}
	if set["rows_per_worker"] {
		exp.RowsPerWorker = keep.RowsPerWorker
	}
	if set["track_decimals"] {
		exp.TrackDecimals = keep.TrackDecimals
	}
	if set["peak_decimals"] {
		exp.PeakDecimals = keep.PeakDecimals
	}
	if set["bigwig"] {
		exp.BigWig = keep.BigWig
	}
	if set["queue_depth"] {
		exp.QueueDepth = keep.QueueDepth
	}
}

// latestWeights finds the newest checkpoint of a previous run of the same
// label under outHome. Experiment directories sort chronologically by name
// because the suffix is a timestamp.
func latestWeights(outHome, label string) string {
	dirs, err := filepath.Glob(filepath.Join(outHome, label+"_*"))
	if err != nil || len(dirs) == 0 {
		logrus.Fatalf("no previous %s experiment under %s to resume from", label, outHome)
	}
	sort.Strings(dirs)
	for i := len(dirs) - 1; i >= 0; i-- {
		if latest, err := checkpoint.Latest(dirs[i], label); err == nil {
			return latest
		}
	}
	logrus.Fatalf("no checkpoint of %s found under %s", label, outHome)
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func prefix(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
