// Package bed implements genomic interval tables and chromosome size tables.
package bed

import "bufio"
import "fmt"
import "io"
import "os"
import "strconv"
import "strings"

import "github.com/pkg/errors"

// Interval is a half-open genomic coordinate range on a named chromosome.
type Interval struct {
	Chrom string
	Start int
	End   int
}

// Table is an ordered interval table. It is read once at startup and shared
// read-only across workers and the writer.
type Table struct {
	rows []Interval
}

func NewTable(rows []Interval) *Table {
	return &Table{rows: rows}
}

// Len returns the number of intervals in the table.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns the interval at row index i.
func (t *Table) Row(i int) Interval {
	return t.rows[i]
}

// ReadIntervals reads a tab-separated (chrom, start, end) file without header.
func ReadIntervals(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open intervals")
	}
	defer file.Close()

	var rows []Interval
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 3 {
			return nil, errors.Errorf("intervals %s:%d: want 3 columns, got %d", path, line, len(fields))
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "intervals %s:%d: start", path, line)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "intervals %s:%d: end", path, line)
		}
		if start < 0 || end <= start {
			return nil, errors.Errorf("intervals %s:%d: bad range %d-%d", path, line, start, end)
		}
		rows = append(rows, Interval{Chrom: fields[0], Start: start, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read intervals")
	}
	return &Table{rows: rows}, nil
}

// Write writes the table as tab-separated (chrom, start, end) rows.
func (t *Table) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, r := range t.rows {
		if _, err := fmt.Fprintf(bw, "%s\t%d\t%d\n", r.Chrom, r.Start, r.End); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes the table to a BED file.
func (t *Table) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create intervals")
	}
	if err := t.Write(file); err != nil {
		file.Close()
		return errors.Wrap(err, "write intervals")
	}
	return file.Close()
}

// Sizes maps chromosome names to their lengths, preserving file order.
type Sizes struct {
	order   []string
	lengths map[string]int
}

// NewSizes builds a size table from an ordered chromosome list and lengths.
func NewSizes(order []string, lengths map[string]int) *Sizes {
	return &Sizes{order: order, lengths: lengths}
}

// ReadSizes reads a tab-separated (chrom, length) file without header.
func ReadSizes(path string) (*Sizes, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open sizes")
	}
	defer file.Close()

	s := &Sizes{lengths: make(map[string]int)}
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 2 {
			return nil, errors.Errorf("sizes %s:%d: want 2 columns, got %d", path, line, len(fields))
		}
		length, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "sizes %s:%d: length", path, line)
		}
		if length <= 0 {
			return nil, errors.Errorf("sizes %s:%d: bad length %d", path, line, length)
		}
		if _, dup := s.lengths[fields[0]]; dup {
			return nil, errors.Errorf("sizes %s:%d: duplicate chromosome %s", path, line, fields[0])
		}
		s.order = append(s.order, fields[0])
		s.lengths[fields[0]] = length
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read sizes")
	}
	return s, nil
}

// Chroms returns chromosome names in file order.
func (s *Sizes) Chroms() []string {
	return s.order
}

// Length returns the length of chrom and whether it is known.
func (s *Sizes) Length(chrom string) (int, bool) {
	n, ok := s.lengths[chrom]
	return n, ok
}

// Filter returns a new size table holding only chromosomes accepted by keep.
func (s *Sizes) Filter(keep func(chrom string) bool) *Sizes {
	out := &Sizes{lengths: make(map[string]int)}
	for _, c := range s.order {
		if keep(c) {
			out.order = append(out.order, c)
			out.lengths[c] = s.lengths[c]
		}
	}
	return out
}
