package main

import "flag"
import "math/rand"
import "path/filepath"
import "sort"

import "github.com/sirupsen/logrus"

import "github.com/epitrack/denoiser/bed"
import "github.com/epitrack/denoiser/bigwig"

func main() {
	sizesPath := flag.String("sizes", "", "chromosome sizes file")
	size := flag.Int("interval_size", 50000, "interval width")
	shift := flag.Int("shift", 0, "stride between interval starts; 0 means non-overlapping")
	outDir := flag.String("out_dir", ".", "output directory")
	prefix := flag.String("prefix", "intervals", "output file prefix")
	wg := flag.Bool("wg", false, "tile the whole genome into one file")
	val := flag.String("val", "", "chromosome held out for validation")
	holdout := flag.String("holdout", "", "chromosome held out for final testing")
	peakFile := flag.String("peakfile", "", "peak track used to downsample signal-free training intervals")
	nonpeak := flag.Int("nonpeak", 1, "signal-free intervals kept per peak interval")
	seed := flag.Int64("seed", 1, "sampling seed")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *sizesPath == "" {
		logrus.Fatal("pass -sizes")
	}
	sizes, err := bed.ReadSizes(*sizesPath)
	if err != nil {
		logrus.Fatal(err)
	}
	if *shift <= 0 {
		*shift = *size
	}

	if *wg {
		write(filepath.Join(*outDir, *prefix+".genome_intervals.bed"), bed.Tiling(sizes, *size, *shift))
		return
	}
	if *val == "" || *holdout == "" {
		logrus.Fatal("pass -val and -holdout, or -wg")
	}

	training := sizes.Filter(func(chrom string) bool { return chrom != *val && chrom != *holdout })
	trainTable := bed.Tiling(training, *size, *shift)
	if *peakFile != "" {
		trainTable = downsample(trainTable, *peakFile, *nonpeak, *seed)
	}

	write(filepath.Join(*outDir, *prefix+".training_intervals.bed"), trainTable)
	write(filepath.Join(*outDir, *prefix+".val_intervals.bed"),
		bed.Tiling(sizes.Filter(func(chrom string) bool { return chrom == *val }), *size, *shift))
	write(filepath.Join(*outDir, *prefix+".holdout_intervals.bed"),
		bed.Tiling(sizes.Filter(func(chrom string) bool { return chrom == *holdout }), *size, *shift))
}

// downsample keeps every interval overlapping peak signal plus ratio
// signal-free intervals per peak interval, sampled without replacement.
// Output keeps the original table order.
func downsample(t *bed.Table, peakFile string, ratio int, seed int64) *bed.Table {
	overlaps, err := bigwig.OverlapsSignal(peakFile, t)
	if err != nil {
		logrus.Fatal(err)
	}
	var peak, free []int
	for i, has := range overlaps {
		if has {
			peak = append(peak, i)
		} else {
			free = append(free, i)
		}
	}
	want := len(peak) * ratio
	if want > len(free) {
		want = len(free)
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })

	keep := append(peak, free[:want]...)
	sort.Ints(keep)
	rows := make([]bed.Interval, 0, len(keep))
	for _, i := range keep {
		rows = append(rows, t.Row(i))
	}
	logrus.WithFields(logrus.Fields{"peak": len(peak), "free": want}).Info("downsampled training intervals")
	return bed.NewTable(rows)
}

func write(path string, t *bed.Table) {
	if err := t.WriteFile(path); err != nil {
		logrus.Fatal(err)
	}
	logrus.WithFields(logrus.Fields{"file": path, "rows": t.Len()}).Info("intervals written")
}
