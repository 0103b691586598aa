package track

import "bufio"
import "fmt"
import "io"
import "os"
import "strconv"
import "strings"

import "github.com/pkg/errors"

// Append writes records to w as tab-separated (chrom, start, end, score) rows.
func Append(w io.Writer, recs []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range recs {
		score := strconv.FormatFloat(r.Score, 'g', -1, 64)
		if _, err := fmt.Fprintf(bw, "%s\t%d\t%d\t%s\n", r.Chrom, r.Start, r.End, score); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// AppendFile appends records to the bedGraph file at path, creating it if
// needed.
func AppendFile(path string, recs []Record) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "open track file")
	}
	if err := Append(file, recs); err != nil {
		file.Close()
		return errors.Wrap(err, "append track records")
	}
	return file.Close()
}

// ReadFile reads a bedGraph file back into records.
func ReadFile(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open track file")
	}
	defer file.Close()

	var recs []Record
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
		if len(fields) < 4 {
			return nil, errors.Errorf("track %s:%d: want 4 columns, got %d", path, line, len(fields))
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "track %s:%d: start", path, line)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "track %s:%d: end", path, line)
		}
		score, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "track %s:%d: score", path, line)
		}
		recs = append(recs, Record{Chrom: fields[0], Start: start, End: end, Score: score})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read track file")
	}
	return recs, nil
}
