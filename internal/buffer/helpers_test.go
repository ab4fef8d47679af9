package buffer

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"

	"hexit/internal/storage"
)

const mockChunks = 255

var errInjected = errors.New("injected i/o failure")

// countingHandler wraps a storage.Memory, counting reads and writes and
// failing on demand.
type countingHandler struct {
	*storage.Memory

	loads  int
	writes []int64 // offsets passed to each Write

	failRead  bool
	failWrite bool
	failSeek  bool
	// chunk offsets whose writes fail
	failAt map[int64]bool

	pos int64
}

func newCountingHandler(size int, readOnly bool) *countingHandler {
	data := make([]byte, size)
	rng := rand.New(rand.NewSource(int64(size)))
	rng.Read(data)
	return &countingHandler{Memory: storage.NewMemory("test/path/to/somewhere", data, readOnly)}
}

func (h *countingHandler) SeekTo(off int64) error {
	if h.failSeek {
		return errInjected
	}
	h.pos = off
	return h.Memory.SeekTo(off)
}

func (h *countingHandler) Read(p []byte) error {
	if h.failRead {
		// scribble over the destination like a partial read would
		for i := range p {
			p[i] = 0xAA
		}
		return errInjected
	}
	h.loads++
	return h.Memory.Read(p)
}

func (h *countingHandler) Write(p []byte) error {
	if h.failWrite || h.failAt[h.pos] {
		return errInjected
	}
	if !h.ReadOnly() {
		h.writes = append(h.writes, h.pos)
	}
	return h.Memory.Write(p)
}

// syncingHandler adds a Syncer to countingHandler.
type syncingHandler struct {
	*countingHandler
	syncs    int
	failSync bool
}

func (h *syncingHandler) Sync() error {
	if h.failSync {
		return errInjected
	}
	h.syncs++
	return nil
}

// dirTransfer serves remote paths out of a local directory.
type dirTransfer struct {
	root       string
	uploads    int
	failUpload bool
}

func (d *dirTransfer) Download(_ context.Context, remotePath, localPath string) error {
	data, err := os.ReadFile(filepath.Join(d.root, remotePath))
	if err != nil {
		return err
	}
	return os.WriteFile(localPath, data, 0o600)
}

func (d *dirTransfer) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.failUpload {
		return errInjected
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	d.uploads++
	return os.WriteFile(filepath.Join(d.root, remotePath), data, 0o644)
}

// failingRemote refuses writes at one offset of a storage.Remote.
type failingRemote struct {
	*storage.Remote
	failAt int64
	pos    int64
}

func (r *failingRemote) SeekTo(off int64) error {
	r.pos = off
	return r.Remote.SeekTo(off)
}

func (r *failingRemote) Write(p []byte) error {
	if r.pos == r.failAt {
		return errInjected
	}
	return r.Remote.Write(p)
}
