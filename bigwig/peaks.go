package bigwig

import (
	"sort"

	"github.com/epitrack/denoiser/bed"
	"github.com/epitrack/denoiser/track"
)

// OverlapsSignal reports, for every interval in t, whether the binary track
// file at path carries a positive score anywhere inside that interval.
func OverlapsSignal(path string, t *bed.Table) ([]bool, error) {
	recs, _, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	byChrom := make(map[string][]track.Record)
	for _, r := range recs {
		if r.Score > 0 {
			byChrom[r.Chrom] = append(byChrom[r.Chrom], r)
		}
	}
	// Ends are not monotone under a start sort (a long record can contain
	// later short ones), so the search key is the running maximum end.
	maxEnds := make(map[string][]int)
	for chrom, rs := range byChrom {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Start < rs[j].Start })
		ends := make([]int, len(rs))
		max := 0
		for k, r := range rs {
			if r.End > max {
				max = r.End
			}
			ends[k] = max
		}
		maxEnds[chrom] = ends
	}

	out := make([]bool, t.Len())
	for i := 0; i < t.Len(); i++ {
		iv := t.Row(i)
		rs := byChrom[iv.Chrom]
		ends := maxEnds[iv.Chrom]
		// first position whose running-max end passes the interval start
		j := sort.Search(len(rs), func(k int) bool { return ends[k] > iv.Start })
		for k := j; k < len(rs) && rs[k].Start < iv.End; k++ {
			if rs[k].End > iv.Start {
				out[i] = true
				break
			}
		}
	}
	return out, nil
}
