package eeprom

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// File is a medium backed by an image file. Commit replaces the file
// atomically by writing a temporary sibling and renaming it into place.
type File struct {
	image
	fs   afero.Fs
	path string
}

// OpenFile loads the image at path. A missing file yields an erased image;
// a file of the wrong size is truncated or padded with erased bytes.
func OpenFile(fsys afero.Fs, path string, size int) (*File, error) {
	if size <= 0 {
		return nil, fmt.Errorf("eeprom: invalid size %d", size)
	}

	f := &File{image: newImage(size), fs: fsys, path: path}

	data, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info().Str("path", path).Msg("eeprom: no image, starting erased")
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("read eeprom image: %w", err)
	}

	if len(data) != size {
		log.Warn().Str("path", path).Int("size", len(data)).Int("want", size).Msg("eeprom: image size mismatch")
	}
	copy(f.buf, data)
	return f, nil
}

// Commit writes the cache to disk if anything changed since the last Commit.
func (f *File) Commit() error {
	if !f.dirty {
		return nil
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := f.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create eeprom dir: %w", err)
		}
	}

	tmp := f.path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, f.buf, 0o644); err != nil {
		return fmt.Errorf("write eeprom image: %w", err)
	}
	if err := f.fs.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace eeprom image: %w", err)
	}

	f.dirty = false
	return nil
}

// Path returns the image file path.
func (f *File) Path() string {
	return f.path
}
