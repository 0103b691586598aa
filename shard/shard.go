// Package shard implements the random-access dataset shard file format.
//
// A shard holds one data array of shape [records × interval length ×
// channels] as little-endian float32, behind a fixed header. Channel 0 is the
// model input signal; training shards carry target channels after it.
package shard

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/epitrack/denoiser/binio"
)

var magic = []byte("DNSH")

const version = uint16(1)

// headerSize is the fixed byte length of the shard header.
const headerSize = 4 + 2 + 4 + 4 + 2

// Reader provides random access to shard records.
type Reader struct {
	f        *os.File
	count    int
	length   int
	channels int
}

// Open opens a shard file and reads its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open shard")
	}
	if err := binio.CheckMagic(f, magic); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "shard %s", path)
	}
	var ver uint16
	var count, length uint32
	var channels uint16
	for _, v := range []interface{}{&ver, &count, &length, &channels} {
		if err := binio.Read(f, v); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "shard %s: header", path)
		}
	}
	if ver != version {
		f.Close()
		return nil, errors.Errorf("shard %s: unsupported version %d", path, ver)
	}
	if length == 0 || channels == 0 {
		f.Close()
		return nil, errors.Errorf("shard %s: empty geometry %d×%d", path, length, channels)
	}
	return &Reader{f: f, count: int(count), length: int(length), channels: int(channels)}, nil
}

// Len returns the number of records.
func (r *Reader) Len() int { return r.count }

// IntervalLen returns the per-record position count. It is read once to
// configure the model.
func (r *Reader) IntervalLen() int { return r.length }

// Channels returns the number of channels per position.
func (r *Reader) Channels() int { return r.channels }

// Record reads record i as a [position][channel] matrix.
func (r *Reader) Record(i int) ([][]float32, error) {
	if i < 0 || i >= r.count {
		return nil, errors.Errorf("record %d out of range [0,%d)", i, r.count)
	}
	vals := r.length * r.channels
	buf := make([]byte, 4*vals)
	off := int64(headerSize) + int64(i)*int64(len(buf))
	if _, err := r.f.ReadAt(buf, off); err != nil {
		return nil, errors.Wrapf(err, "record %d", i)
	}
	rec := make([][]float32, r.length)
	flat := make([]float32, vals)
	for j := range flat {
		flat[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
	}
	for p := 0; p < r.length; p++ {
		rec[p] = flat[p*r.channels : (p+1)*r.channels : (p+1)*r.channels]
	}
	return rec, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// Writer builds a shard file record by record.
type Writer struct {
	f        *os.File
	length   int
	channels int
	count    int
}

// Create creates a shard file for records of the given geometry.
func Create(path string, length, channels int) (*Writer, error) {
	if length <= 0 || channels <= 0 {
		return nil, errors.Errorf("bad shard geometry %d×%d", length, channels)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create shard")
	}
	w := &Writer{f: f, length: length, channels: channels}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader() error {
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.f.Write(magic); err != nil {
		return err
	}
	for _, v := range []interface{}{version, uint32(w.count), uint32(w.length), uint16(w.channels)} {
		if err := binio.Write(w.f, v); err != nil {
			return err
		}
	}
	return nil
}

// Append appends one [position][channel] record.
func (w *Writer) Append(rec [][]float32) error {
	if len(rec) != w.length {
		return errors.Errorf("record has %d positions, shard wants %d", len(rec), w.length)
	}
	buf := make([]byte, 0, 4*w.length*w.channels)
	var scratch [4]byte
	for _, pos := range rec {
		if len(pos) != w.channels {
			return errors.Errorf("record has %d channels, shard wants %d", len(pos), w.channels)
		}
		for _, v := range pos {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
			buf = append(buf, scratch[:]...)
		}
	}
	if _, err := w.f.Write(buf); err != nil {
		return errors.Wrap(err, "append record")
	}
	w.count++
	return nil
}

// Close patches the record count into the header and closes the file.
func (w *Writer) Close() error {
	if err := w.writeHeader(); err != nil {
		w.f.Close()
		return errors.Wrap(err, "finalize shard header")
	}
	return w.f.Close()
}
