// Package track converts per-position model scores into bedGraph records.
package track

import "math"

import "github.com/epitrack/denoiser/bed"

// Record is one coordinate-sorted track row.
type Record struct {
	Chrom string
	Start int
	End   int
	Score float64
}

// Expand joins per-position scores onto their source interval and contracts
// runs of equal score into minimal contiguous records. Zero-score runs are
// dropped; most genomic positions carry no signal.
func Expand(iv bed.Interval, scores []float64) []Record {
	var out []Record
	runStart := 0
	for i := 1; i <= len(scores); i++ {
		if i < len(scores) && scores[i] == scores[runStart] {
			continue
		}
		if s := scores[runStart]; s != 0 {
			out = append(out, Record{
				Chrom: iv.Chrom,
				Start: iv.Start + runStart,
				End:   iv.Start + i,
				Score: s,
			})
		}
		runStart = i
	}
	return out
}

// Round rounds every score to the given number of decimals, in place.
func Round(scores []float64, decimals int) {
	scale := math.Pow(10, float64(decimals))
	for i, s := range scores {
		scores[i] = math.Round(s*scale) / scale
	}
}

// Binarize sets every score strictly above threshold to 1 and every other
// score to 0, in place.
func Binarize(scores []float64, threshold float64) {
	for i, s := range scores {
		if s > threshold {
			scores[i] = 1
		} else {
			scores[i] = 0
		}
	}
}
