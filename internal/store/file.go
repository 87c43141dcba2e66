package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/dstore/internal/record"
)

// FileSuffix is appended to a store name to form its file name.
const FileSuffix = ".ds.json"

// NormalizeName validates a store name and returns its canonical form.
// Names are NFC normalized so that visually identical names map to the
// same file on every platform.
func NormalizeName(name string) (string, error) {
	n := norm.NFC.String(strings.TrimSpace(name))
	switch {
	case n == "":
		return "", errors.New("store name is empty")
	case n == "." || n == "..":
		return "", fmt.Errorf("invalid store name %q", name)
	case strings.ContainsAny(n, `/\`+"\x00"):
		return "", fmt.Errorf("store name %q contains a path separator", name)
	}
	return n, nil
}

// FileName returns the file name used for a normalized store name.
func FileName(name string) string {
	return name + FileSuffix
}

// PathFor returns the file path for the named store in dir.
func PathFor(dir, name string) (string, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName(n)), nil
}

// WriteFileAtomic replaces path with data. The data goes to a uniquely
// named temp file in the same directory which is synced and renamed over
// path, so readers see either the old or the new snapshot.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// loadFile reads the snapshot at path, creating an empty one when the file
// does not exist. It returns the records and the number of bytes read.
func loadFile[T record.Record](path string, write FileWriter) ([]T, int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := write(path, []byte("[]")); err != nil {
			return nil, 0, fmt.Errorf("create %s: %w", path, err)
		}
		return []T{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []T{}, len(data), nil
	}

	records, err := record.DecodeAll[T](data)
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, len(data), nil
}
