package bed

import "github.com/pkg/errors"

// Check validates that an interval table, a size table and a dataset shard of
// records records are mutually compatible. It must pass before inference
// starts; a failure is a configuration error and is never retried.
func Check(t *Table, s *Sizes, records int) error {
	if t.Len() != records {
		return errors.Errorf("infer dataset size (%d) doesn't match the intervals file (%d)", records, t.Len())
	}
	for i := 0; i < t.Len(); i++ {
		iv := t.Row(i)
		length, ok := s.Length(iv.Chrom)
		if !ok {
			return errors.Errorf("intervals file contains chromosome not in sizes file (%s)", iv.Chrom)
		}
		if iv.End > length {
			return errors.Errorf("interval %s:%d-%d exceeds chromosome size %d", iv.Chrom, iv.Start, iv.End, length)
		}
	}
	return nil
}
