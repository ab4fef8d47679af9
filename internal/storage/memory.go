package storage

import (
	"fmt"
	"io"
)

// Memory is a Handler over an in-memory byte slice. It backs standard input
// captures, which cannot seek backwards, and serves as a test double.
type Memory struct {
	name     string
	data     []byte
	off      int64
	readOnly bool
	closed   bool
}

// NewMemory wraps data without copying it.
func NewMemory(name string, data []byte, readOnly bool) *Memory {
	return &Memory{name: name, data: data, readOnly: readOnly}
}

// ReadAll buffers r until EOF and returns a read-only handler over the
// captured bytes.
func ReadAll(r io.Reader, name string) (*Memory, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return NewMemory(name, data, true), nil
}

func (m *Memory) SeekTo(offset int64) error {
	if m.closed {
		return ErrClosed
	}
	if offset < 0 || offset > int64(len(m.data)) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, offset)
	}
	m.off = offset
	return nil
}

func (m *Memory) Read(p []byte) error {
	if m.closed {
		return ErrClosed
	}
	if m.off+int64(len(p)) > int64(len(m.data)) {
		return fmt.Errorf("%w: want %d bytes at %d of %d", ErrShortRead, len(p), m.off, len(m.data))
	}
	m.off += int64(copy(p, m.data[m.off:]))
	return nil
}

// Write overwrites bytes at the current position. The medium never grows.
func (m *Memory) Write(p []byte) error {
	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return nil
	}
	if m.off+int64(len(p)) > int64(len(m.data)) {
		return fmt.Errorf("%w: write of %d bytes at %d", ErrOutOfRange, len(p), m.off)
	}
	m.off += int64(copy(m.data[m.off:], p))
	return nil
}

// Bytes returns the backing slice.
func (m *Memory) Bytes() []byte { return m.data }

func (m *Memory) Size() int64    { return int64(len(m.data)) }
func (m *Memory) Name() string   { return m.name }
func (m *Memory) ReadOnly() bool { return m.readOnly }

func (m *Memory) Close() error {
	m.closed = true
	m.data = nil
	m.off = 0
	return nil
}
