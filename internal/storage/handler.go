// Package storage provides the byte-addressable media the editor reads from
// and writes back to.
package storage

import "errors"

var (
	// ErrClosed is returned by every operation on a closed handler.
	ErrClosed = errors.New("storage: handler is closed")
	// ErrShortRead is returned when Read cannot fill the whole buffer.
	ErrShortRead = errors.New("storage: short read")
	// ErrOutOfRange is returned when an offset lies outside the medium.
	ErrOutOfRange = errors.New("storage: offset out of range")
)

// Handler is a seekable medium of fixed size. Reads and writes start at the
// position set by the last SeekTo and advance it.
//
// Read-only handlers accept writes and discard them.
type Handler interface {
	SeekTo(offset int64) error
	// Read fills p completely or fails with ErrShortRead.
	Read(p []byte) error
	Write(p []byte) error
	Size() int64
	Name() string
	ReadOnly() bool
	Close() error
}

// Syncer is implemented by handlers whose writes only become durable after
// an explicit flush.
type Syncer interface {
	Sync() error
}
