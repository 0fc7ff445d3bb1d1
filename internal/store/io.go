package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	fileMode os.FileMode = 0o600
	dirMode  os.FileMode = 0o700
)

// loadFile returns the contents of dir/name, or nil when it does not exist.
func loadFile(dir, name string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

// replaceFile writes b to a sibling temp file and renames it over dir/name,
// so a crash leaves either the old or the new contents. The directory is
// created if missing.
func replaceFile(dir, name string, b []byte) (err error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if err = f.Chmod(fileMode); err != nil {
		return err
	}
	if _, err = f.Write(b); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, name))
}
