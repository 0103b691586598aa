// Package combine reduces a directory of partial files to a single file by
// deterministic pairwise merging.
package combine

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/epitrack/denoiser/parallel"
)

// Reduce merges the partial files under dir pairwise until one remains and
// returns its path. The caller must hand over an even number of files (or
// exactly one); an odd initial count is a contract violation, not silently
// merged. Files are re-sorted by name before every pass, so the surviving
// byte order is the sorted-name concatenation of the inputs whatever the
// sub-workers' completion timing was. Pairing is by sorted position; an odd
// intermediate count (6 files reduce to 3) leaves the last file for the next
// pass, so the trailing range is never merged out of order. At most workers
// merges run concurrently per pass, bounding open files. Any append or
// delete error aborts the reduction with no partial-merge recovery.
func Reduce(dir string, workers int) (string, error) {
	first := true
	for {
		files, err := list(dir)
		if err != nil {
			return "", err
		}
		switch len(files) {
		case 0:
			return "", errors.Errorf("no partial files under %s", dir)
		case 1:
			return files[0], nil
		}
		if first && len(files)%2 != 0 {
			return "", errors.Errorf("%d partial files under %s: the caller must pad to an even count", len(files), dir)
		}
		first = false
		pairs := len(files) / 2
		err = parallel.ForEachErr(pairs, workers, func(i int) error {
			return appendAndRemove(files[2*i], files[2*i+1])
		})
		if err != nil {
			return "", err
		}
	}
}

func list(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "list partial files")
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// appendAndRemove appends the raw bytes of src onto dst, then deletes src.
func appendAndRemove(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open partial file")
	}
	out, err := os.OpenFile(dst, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		in.Close()
		return errors.Wrap(err, "open merge target")
	}
	_, err = io.Copy(out, in)
	in.Close()
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "combining %s and %s", dst, src)
	}
	return errors.Wrap(os.Remove(src), "remove merged file")
}
