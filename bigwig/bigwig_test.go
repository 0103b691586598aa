package bigwig

import (
	"bytes"
	"compress/zlib"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epitrack/denoiser/bed"
	"github.com/epitrack/denoiser/binio"
	"github.com/epitrack/denoiser/track"
)

func testSizes() *bed.Sizes {
	return bed.NewSizes([]string{"chr1", "chr2"}, map[string]int{"chr1": 1000, "chr2": 500})
}

func TestRoundTrip(t *testing.T) {
	recs := []track.Record{
		{Chrom: "chr1", Start: 0, End: 100, Score: 1.25},
		{Chrom: "chr1", Start: 150, End: 200, Score: 3},
		{Chrom: "chr2", Start: 0, End: 50, Score: 0.5},
		{Chrom: "chr2", Start: 60, End: 61, Score: 7},
	}
	path := filepath.Join(t.TempDir(), "out.bw")
	require.NoError(t, WriteFile(path, recs, testSizes()))

	got, sizes, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, recs, got)

	n, ok := sizes.Length("chr2")
	assert.True(t, ok)
	assert.Equal(t, 500, n)
}

func TestWriteSortsRecords(t *testing.T) {
	recs := []track.Record{
		{Chrom: "chr2", Start: 0, End: 50, Score: 0.5},
		{Chrom: "chr1", Start: 150, End: 200, Score: 3},
		{Chrom: "chr1", Start: 0, End: 100, Score: 1.25},
	}
	path := filepath.Join(t.TempDir(), "out.bw")
	require.NoError(t, WriteFile(path, recs, testSizes()))
	got, _, err := ReadFile(path)
	require.NoError(t, err)
	want := []track.Record{
		{Chrom: "chr1", Start: 0, End: 100, Score: 1.25},
		{Chrom: "chr1", Start: 150, End: 200, Score: 3},
		{Chrom: "chr2", Start: 0, End: 50, Score: 0.5},
	}
	assert.Equal(t, want, got)
}

func TestWriteRejectsBadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bw")
	err := WriteFile(path, []track.Record{{Chrom: "chrX", Start: 0, End: 10, Score: 1}}, testSizes())
	assert.Error(t, err, "unknown chromosome")
	err = WriteFile(path, []track.Record{{Chrom: "chr2", Start: 400, End: 600, Score: 1}}, testSizes())
	assert.Error(t, err, "end beyond chromosome length")
}

func TestManyBlocks(t *testing.T) {
	var recs []track.Record
	for i := 0; i < 3*maxBlockRecords+17; i++ {
		recs = append(recs, track.Record{Chrom: "chr1", Start: 100000 + 2*i, End: 100000 + 2*i + 1, Score: float64(i%9) + 1})
	}
	sizes := bed.NewSizes([]string{"chr1"}, map[string]int{"chr1": 10 * 1000 * 1000})
	path := filepath.Join(t.TempDir(), "out.bw")
	require.NoError(t, WriteFile(path, recs, sizes))
	got, _, err := ReadFile(path)
	require.NoError(t, err)
	if !reflect.DeepEqual(recs, got) {
		t.Fatalf("record mismatch after %d-block round trip", len(recs)/maxBlockRecords+1)
	}
}

func TestReadBlockWithTrailingSlack(t *testing.T) {
	// a block may declare more compressed bytes than the zlib stream
	// consumes; the next block header starts after the declared length
	var payload bytes.Buffer
	zw := zlib.NewWriter(&payload)
	require.NoError(t, binio.Write(zw, uint32(10)))
	require.NoError(t, binio.Write(zw, uint32(20)))
	require.NoError(t, binio.Write(zw, float64(2)))
	require.NoError(t, zw.Close())
	comp := append(payload.Bytes(), 0, 0, 0)

	var buf bytes.Buffer
	buf.Write(magic)
	require.NoError(t, binio.Write(&buf, version))
	require.NoError(t, binio.Write(&buf, uint16(1)))
	require.NoError(t, binio.WriteString(&buf, "chr1"))
	require.NoError(t, binio.Write(&buf, uint32(1000)))
	require.NoError(t, binio.Write(&buf, uint32(2)))
	for b := 0; b < 2; b++ {
		hdr := blockHeader{ChromID: 0, MinStart: 10, MaxEnd: 20, Records: 1, CompLen: uint32(len(comp))}
		require.NoError(t, binio.Write(&buf, hdr))
		buf.Write(comp)
	}

	recs, _, err := Read(&buf)
	require.NoError(t, err)
	want := []track.Record{{Chrom: "chr1", Start: 10, End: 20, Score: 2}, {Chrom: "chr1", Start: 10, End: 20, Score: 2}}
	assert.Equal(t, want, recs)
}

func TestFromBedGraph(t *testing.T) {
	recs := []track.Record{
		{Chrom: "chr1", Start: 0, End: 100, Score: 2},
		{Chrom: "chr2", Start: 10, End: 20, Score: 1.5},
	}
	dir := t.TempDir()
	bg := filepath.Join(dir, "out.track.bedGraph")
	require.NoError(t, track.AppendFile(bg, recs))

	bw := filepath.Join(dir, "out.track.bw")
	require.NoError(t, FromBedGraph(bg, testSizes(), bw))

	got, _, err := ReadFile(bw)
	require.NoError(t, err)
	assert.Equal(t, recs, got)
}

func TestOverlapsSignal(t *testing.T) {
	recs := []track.Record{
		{Chrom: "chr1", Start: 100, End: 200, Score: 5},
		{Chrom: "chr1", Start: 300, End: 400, Score: 0},
		{Chrom: "chr2", Start: 0, End: 10, Score: 1},
	}
	path := filepath.Join(t.TempDir(), "peaks.bw")
	require.NoError(t, WriteFile(path, recs, testSizes()))

	table := bed.NewTable([]bed.Interval{
		{Chrom: "chr1", Start: 0, End: 100},   // touches nothing: record starts at 100
		{Chrom: "chr1", Start: 150, End: 250}, // overlaps positive record
		{Chrom: "chr1", Start: 300, End: 400}, // overlaps only the zero record
		{Chrom: "chr2", Start: 5, End: 8},     // inside positive record
		{Chrom: "chr3", Start: 0, End: 10},    // unknown chromosome
	})
	got, err := OverlapsSignal(path, table)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false, true, false}, got)
}

func TestOverlapsSignalNestedRecords(t *testing.T) {
	// a long record containing later short ones makes record ends
	// non-monotone under the start sort
	recs := []track.Record{
		{Chrom: "chr1", Start: 0, End: 100, Score: 1},
		{Chrom: "chr1", Start: 10, End: 11, Score: 1},
		{Chrom: "chr1", Start: 50, End: 200, Score: 1},
	}
	path := filepath.Join(t.TempDir(), "peaks.bw")
	require.NoError(t, WriteFile(path, recs, testSizes()))

	table := bed.NewTable([]bed.Interval{
		{Chrom: "chr1", Start: 20, End: 30},   // inside the containing record only
		{Chrom: "chr1", Start: 11, End: 12},   // past the short record, still covered
		{Chrom: "chr1", Start: 200, End: 210}, // past every record
	})
	got, err := OverlapsSignal(path, table)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false}, got)
}
