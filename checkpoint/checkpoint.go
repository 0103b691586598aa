// Package checkpoint persists and restores model weights across epochs.
//
// A checkpoint is an opaque weight blob keyed by epoch. Later checkpoints
// supersede earlier ones without overwriting them; the best checkpoint is an
// extra copy under a fixed name so resume and inference can find it without
// scanning.
package checkpoint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/epitrack/denoiser/binio"
	"github.com/epitrack/denoiser/model"
)

var magic = []byte("DNCK")

// Name returns the checkpoint file name for an epoch.
func Name(base string, epoch int) string {
	return fmt.Sprintf("%s.epoch%03d.ckpt", base, epoch)
}

// BestName returns the fixed file name of the best checkpoint.
func BestName(base string) string {
	return base + ".best.ckpt"
}

// Save writes the model weights for epoch under dir. When best is set the
// checkpoint is additionally copied to the best name.
func Save(dir, base string, m model.Model, epoch int, best bool) error {
	path := filepath.Join(dir, Name(base, epoch))
	if err := write(path, m, epoch); err != nil {
		return err
	}
	if best {
		if err := copyFile(path, filepath.Join(dir, BestName(base))); err != nil {
			return errors.Wrap(err, "copy best checkpoint")
		}
	}
	return nil
}

func write(path string, m model.Model, epoch int) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create checkpoint")
	}
	if _, err := file.Write(magic); err != nil {
		file.Close()
		return err
	}
	if err := binio.Write(file, uint32(epoch)); err != nil {
		file.Close()
		return err
	}
	if err := m.WriteWeights(file); err != nil {
		file.Close()
		return errors.Wrap(err, "write checkpoint weights")
	}
	return file.Close()
}

// Load restores model weights from a checkpoint file and returns its epoch.
func Load(path string, m model.Model) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open checkpoint")
	}
	defer file.Close()
	if err := binio.CheckMagic(file, magic); err != nil {
		return 0, errors.Wrapf(err, "checkpoint %s", path)
	}
	var epoch uint32
	if err := binio.Read(file, &epoch); err != nil {
		return 0, errors.Wrapf(err, "checkpoint %s: epoch", path)
	}
	if err := m.ReadWeights(file); err != nil {
		return 0, errors.Wrapf(err, "checkpoint %s", path)
	}
	return int(epoch), nil
}

var epochName = regexp.MustCompile(`\.epoch(\d+)\.ckpt$`)

// Latest returns the highest-epoch checkpoint for base under dir.
func Latest(dir, base string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(err, "list checkpoints")
	}
	bestEpoch := -1
	var bestPath string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		m := epochName.FindStringSubmatch(name)
		if m == nil || name != Name(base, mustAtoi(m[1])) {
			continue
		}
		if n := mustAtoi(m[1]); n > bestEpoch {
			bestEpoch = n
			bestPath = filepath.Join(dir, name)
		}
	}
	if bestEpoch < 0 {
		return "", errors.Errorf("no checkpoint for %s under %s", base, dir)
	}
	return bestPath, nil
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
