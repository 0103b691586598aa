package model

import (
	"encoding/json"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// weightsBlob is the serialized weight payload. The geometry fields let a
// loader reject weights trained for a different model shape before any
// parameter is copied.
type weightsBlob struct {
	Model       string      `json:"model"`
	IntervalLen int         `json:"interval_len"`
	Field       int         `json:"field"`
	Params      [][]float32 `json:"params"`
}

func writeWeights(w io.Writer, name string, intervalLen, field int, params [][]float32) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return errors.Wrap(err, "weights encoder")
	}
	blob := weightsBlob{Model: name, IntervalLen: intervalLen, Field: field, Params: params}
	if err := json.NewEncoder(zw).Encode(&blob); err != nil {
		zw.Close()
		return errors.Wrap(err, "encode weights")
	}
	return zw.Close()
}

func readWeights(r io.Reader, name string, intervalLen, field, nparams, plen int) ([][]float32, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "weights decoder")
	}
	defer zr.Close()
	var blob weightsBlob
	if err := json.NewDecoder(zr).Decode(&blob); err != nil {
		return nil, errors.Wrap(err, "decode weights")
	}
	if blob.Model != name {
		return nil, errors.Errorf("weights are for model %q, not %q", blob.Model, name)
	}
	if blob.IntervalLen != intervalLen || blob.Field != field {
		return nil, errors.Errorf("weights geometry %d/%d doesn't match model %d/%d",
			blob.IntervalLen, blob.Field, intervalLen, field)
	}
	if len(blob.Params) != nparams {
		return nil, errors.Errorf("weights hold %d parameter groups, model wants %d", len(blob.Params), nparams)
	}
	for i, p := range blob.Params {
		if len(p) != plen {
			return nil, errors.Errorf("parameter group %d has %d values, model wants %d", i, len(p), plen)
		}
	}
	return blob.Params, nil
}

// WriteWeightsFile writes model weights to a compressed file.
func WriteWeightsFile(m Model, name string) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	err = m.WriteWeights(file)
	file.Close()
	return err
}

// ReadWeightsFile reads model weights from a compressed file.
func ReadWeightsFile(m Model, name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	err = m.ReadWeights(file)
	file.Close()
	return err
}
