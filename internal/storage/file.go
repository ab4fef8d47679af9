package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// File is a Handler backed by a regular file on the local filesystem.
type File struct {
	f        *os.File
	name     string
	size     int64
	readOnly bool
	written  bool
}

// OpenFile opens path for editing. When readOnly is false but the file is not
// writable by the current user, the file is opened read-only instead.
func OpenFile(path string, readOnly bool) (*File, error) {
	name, err := canonical(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", name)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", name)
	}

	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(name, flag, 0)
	if err != nil && !readOnly && errors.Is(err, fs.ErrPermission) {
		log.Printf("[storage] %s is not writable, opening read-only", name)
		readOnly = true
		f, err = os.OpenFile(name, os.O_RDONLY, 0)
	}
	if err != nil {
		return nil, err
	}

	return &File{
		f:        f,
		name:     name,
		size:     info.Size(),
		readOnly: readOnly,
	}, nil
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

func (h *File) SeekTo(offset int64) error {
	if h.f == nil {
		return ErrClosed
	}
	if offset < 0 || offset > h.size {
		return fmt.Errorf("%w: %d", ErrOutOfRange, offset)
	}
	_, err := h.f.Seek(offset, io.SeekStart)
	return err
}

func (h *File) Read(p []byte) error {
	if h.f == nil {
		return ErrClosed
	}
	if len(p) == 0 {
		return nil
	}
	n, err := io.ReadFull(h.f, p)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, len(p))
	}
	return err
}

func (h *File) Write(p []byte) error {
	if h.f == nil {
		return ErrClosed
	}
	if h.readOnly || len(p) == 0 {
		return nil
	}
	if _, err := h.f.Write(p); err != nil {
		return err
	}
	h.written = true
	return nil
}

// Sync commits written data to stable storage. It is a no-op when nothing
// was written since the last call.
func (h *File) Sync() error {
	if h.f == nil {
		return ErrClosed
	}
	if !h.written {
		return nil
	}
	if err := h.f.Sync(); err != nil {
		return err
	}
	h.written = false
	return nil
}

func (h *File) Size() int64    { return h.size }
func (h *File) Name() string   { return h.name }
func (h *File) ReadOnly() bool { return h.readOnly }

func (h *File) Close() error {
	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}
