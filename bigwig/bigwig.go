// Package bigwig implements a binary indexed genomic track format.
//
// The layout is a fixed header carrying the chromosome table, followed by
// zlib-compressed blocks of fixed-width records grouped per chromosome. Each
// block header records its chromosome, coordinate span and compressed size,
// so a reader can seek over blocks it does not need.
package bigwig

import (
	"bufio"
	"compress/zlib"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/epitrack/denoiser/bed"
	"github.com/epitrack/denoiser/binio"
	"github.com/epitrack/denoiser/track"
)

var magic = []byte("DNBW")

const version = uint16(1)

// maxBlockRecords bounds the number of records per compressed block.
const maxBlockRecords = 4096

type blockHeader struct {
	ChromID  uint16
	MinStart uint32
	MaxEnd   uint32
	Records  uint32
	CompLen  uint32
}

// Write writes records and the chromosome table of sizes to w. Records must
// lie inside chromosomes known to sizes; they are sorted into size-table
// chromosome order and ascending start before encoding.
func Write(w io.Writer, recs []track.Record, sizes *bed.Sizes) error {
	chroms := sizes.Chroms()
	chromID := make(map[string]uint16, len(chroms))
	for i, c := range chroms {
		chromID[c] = uint16(i)
	}
	for _, r := range recs {
		length, ok := sizes.Length(r.Chrom)
		if !ok {
			return errors.Errorf("record chromosome %s not in sizes table", r.Chrom)
		}
		if r.Start < 0 || r.End <= r.Start || r.End > length {
			return errors.Errorf("record %s:%d-%d outside chromosome of length %d", r.Chrom, r.Start, r.End, length)
		}
	}

	sorted := make([]track.Record, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := chromID[sorted[i].Chrom], chromID[sorted[j].Chrom]
		if ci != cj {
			return ci < cj
		}
		return sorted[i].Start < sorted[j].Start
	})

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic); err != nil {
		return err
	}
	if err := binio.Write(bw, version); err != nil {
		return err
	}
	if err := binio.Write(bw, uint16(len(chroms))); err != nil {
		return err
	}
	for _, c := range chroms {
		if err := binio.WriteString(bw, c); err != nil {
			return err
		}
		length, _ := sizes.Length(c)
		if err := binio.Write(bw, uint32(length)); err != nil {
			return err
		}
	}

	blocks := splitBlocks(sorted)
	if err := binio.Write(bw, uint32(len(blocks))); err != nil {
		return err
	}
	for _, b := range blocks {
		if err := writeBlock(bw, b, chromID); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// splitBlocks groups consecutive same-chromosome records into bounded runs.
func splitBlocks(recs []track.Record) [][]track.Record {
	var blocks [][]track.Record
	for start := 0; start < len(recs); {
		end := start + 1
		for end < len(recs) && end-start < maxBlockRecords && recs[end].Chrom == recs[start].Chrom {
			end++
		}
		blocks = append(blocks, recs[start:end])
		start = end
	}
	return blocks
}

func writeBlock(w io.Writer, recs []track.Record, chromID map[string]uint16) error {
	var raw []byte
	{
		var buf bytesBuffer
		zw := zlib.NewWriter(&buf)
		for _, r := range recs {
			if err := binio.Write(zw, uint32(r.Start)); err != nil {
				return err
			}
			if err := binio.Write(zw, uint32(r.End)); err != nil {
				return err
			}
			if err := binio.Write(zw, r.Score); err != nil {
				return err
			}
		}
		if err := zw.Close(); err != nil {
			return err
		}
		raw = buf.b
	}
	hdr := blockHeader{
		ChromID:  chromID[recs[0].Chrom],
		MinStart: uint32(recs[0].Start),
		MaxEnd:   uint32(maxEnd(recs)),
		Records:  uint32(len(recs)),
		CompLen:  uint32(len(raw)),
	}
	if err := binio.Write(w, hdr); err != nil {
		return err
	}
	_, err := w.Write(raw)
	return err
}

func maxEnd(recs []track.Record) int {
	end := 0
	for _, r := range recs {
		if r.End > end {
			end = r.End
		}
	}
	return end
}

type bytesBuffer struct{ b []byte }

func (w *bytesBuffer) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

// Read reads back every record and the embedded chromosome table.
func Read(r io.Reader) ([]track.Record, *bed.Sizes, error) {
	br := bufio.NewReader(r)
	if err := binio.CheckMagic(br, magic); err != nil {
		return nil, nil, err
	}
	var ver uint16
	if err := binio.Read(br, &ver); err != nil {
		return nil, nil, err
	}
	if ver != version {
		return nil, nil, errors.Errorf("unsupported version %d", ver)
	}
	var chromCount uint16
	if err := binio.Read(br, &chromCount); err != nil {
		return nil, nil, err
	}
	chroms := make([]string, chromCount)
	lengths := make(map[string]int)
	for i := range chroms {
		name, err := binio.ReadString(br)
		if err != nil {
			return nil, nil, err
		}
		var length uint32
		if err := binio.Read(br, &length); err != nil {
			return nil, nil, err
		}
		chroms[i] = name
		lengths[name] = int(length)
	}
	sizes := bed.NewSizes(chroms, lengths)

	var blockCount uint32
	if err := binio.Read(br, &blockCount); err != nil {
		return nil, nil, err
	}
	var recs []track.Record
	for i := uint32(0); i < blockCount; i++ {
		var hdr blockHeader
		if err := binio.Read(br, &hdr); err != nil {
			return nil, nil, err
		}
		if int(hdr.ChromID) >= len(chroms) {
			return nil, nil, errors.Errorf("block %d references unknown chromosome %d", i, hdr.ChromID)
		}
		lr := io.LimitReader(br, int64(hdr.CompLen))
		zr, err := zlib.NewReader(lr)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "block %d", i)
		}
		for j := uint32(0); j < hdr.Records; j++ {
			var start, end uint32
			var score float64
			if err := binio.Read(zr, &start); err != nil {
				return nil, nil, errors.Wrapf(err, "block %d record %d", i, j)
			}
			if err := binio.Read(zr, &end); err != nil {
				return nil, nil, errors.Wrapf(err, "block %d record %d", i, j)
			}
			if err := binio.Read(zr, &score); err != nil {
				return nil, nil, errors.Wrapf(err, "block %d record %d", i, j)
			}
			recs = append(recs, track.Record{
				Chrom: chroms[hdr.ChromID],
				Start: int(start),
				End:   int(end),
				Score: score,
			})
		}
		if err := zr.Close(); err != nil {
			return nil, nil, errors.Wrapf(err, "block %d", i)
		}
		// the zlib reader may leave CompLen bytes partially consumed;
		// the next block header starts right after them
		if _, err := io.Copy(io.Discard, lr); err != nil {
			return nil, nil, errors.Wrapf(err, "block %d", i)
		}
	}
	return recs, sizes, nil
}

// WriteFile writes records to a binary track file at path.
func WriteFile(path string, recs []track.Record, sizes *bed.Sizes) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create bigwig")
	}
	if err := Write(file, recs, sizes); err != nil {
		file.Close()
		return errors.Wrap(err, "write bigwig")
	}
	return file.Close()
}

// ReadFile reads a binary track file.
func ReadFile(path string) ([]track.Record, *bed.Sizes, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open bigwig")
	}
	defer file.Close()
	return Read(file)
}

// FromBedGraph converts a coordinate-sorted bedGraph file into a binary track
// file using the given size table.
func FromBedGraph(bgPath string, sizes *bed.Sizes, outPath string) error {
	recs, err := track.ReadFile(bgPath)
	if err != nil {
		return err
	}
	return WriteFile(outPath, recs, sizes)
}
