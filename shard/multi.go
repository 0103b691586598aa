package shard

import "github.com/pkg/errors"

// Multi concatenates several shard files into one record space. All shards
// must share the same interval length and channel count.
type Multi struct {
	readers []*Reader
	offsets []int
	count   int
}

// OpenAll opens every path and concatenates them in argument order.
func OpenAll(paths []string) (*Multi, error) {
	if len(paths) == 0 {
		return nil, errors.New("no shard files given")
	}
	m := &Multi{}
	for _, p := range paths {
		r, err := Open(p)
		if err != nil {
			m.Close()
			return nil, err
		}
		if len(m.readers) > 0 {
			first := m.readers[0]
			if r.IntervalLen() != first.IntervalLen() || r.Channels() != first.Channels() {
				m.Close()
				r.Close()
				return nil, errors.Errorf("shard %s geometry %d×%d doesn't match %d×%d",
					p, r.IntervalLen(), r.Channels(), first.IntervalLen(), first.Channels())
			}
		}
		m.readers = append(m.readers, r)
		m.offsets = append(m.offsets, m.count)
		m.count += r.Len()
	}
	return m, nil
}

// Len returns the total record count.
func (m *Multi) Len() int { return m.count }

// IntervalLen returns the shared per-record position count.
func (m *Multi) IntervalLen() int { return m.readers[0].IntervalLen() }

// Channels returns the shared channel count.
func (m *Multi) Channels() int { return m.readers[0].Channels() }

// Record reads record i from whichever shard holds it.
func (m *Multi) Record(i int) ([][]float32, error) {
	if i < 0 || i >= m.count {
		return nil, errors.Errorf("record %d out of range [0,%d)", i, m.count)
	}
	k := len(m.readers) - 1
	for k > 0 && m.offsets[k] > i {
		k--
	}
	return m.readers[k].Record(i - m.offsets[k])
}

// Close closes every underlying shard.
func (m *Multi) Close() error {
	var first error
	for _, r := range m.readers {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
