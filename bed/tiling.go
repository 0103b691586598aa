package bed

// Tiling produces intervals of the given size tiling across every chromosome
// in s, shifting the start of successive intervals by shift. A shift of 0
// means non-overlapping intervals. Intervals whose end would reach or exceed
// the chromosome length are dropped.
func Tiling(s *Sizes, size, shift int) *Table {
	if shift <= 0 {
		shift = size
	}
	var rows []Interval
	for _, chrom := range s.Chroms() {
		length, _ := s.Length(chrom)
		for start := 0; start+size < length; start += shift {
			rows = append(rows, Interval{Chrom: chrom, Start: start, End: start + size})
		}
	}
	return &Table{rows: rows}
}
