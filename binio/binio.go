// Package binio provides support for operating on little-endian binary data.
package binio

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// CheckMagic checks the magic bytes from the provided reader.
func CheckMagic(r io.Reader, want []byte) error {
	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		return errors.Wrap(err, "reading magic")
	}
	if !bytes.Equal(got, want) {
		return errors.Errorf("wrong magic %v (wanted %v)", got, want)
	}
	return nil
}

// Read reads a little endian value from r into v.
func Read(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.LittleEndian, v)
}

// Write writes v to w as a little endian value.
func Write(w io.Writer, v interface{}) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// WriteString writes a length-prefixed string to w.
func WriteString(w io.Writer, s string) error {
	if len(s) > 255 {
		return errors.Errorf("string too long: %d bytes", len(s))
	}
	if err := Write(w, uint8(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// ReadString reads a length-prefixed string from r.
func ReadString(r io.Reader) (string, error) {
	var n uint8
	if err := Read(r, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
