package buffer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hexit/internal/storage"

	"github.com/stretchr/testify/require"
)

func newTestBuffer(t *testing.T, size int, readOnly bool) (*ByteBuffer[uint64], *countingHandler) {
	t.Helper()
	h := newCountingHandler(size, readOnly)
	c, err := NewCache[uint64](h, DefaultCapacity)
	require.NoError(t, err)
	return New(c), h
}

func TestByteBufferReadError(t *testing.T) {
	buf, h := newTestBuffer(t, mockChunks*DefaultCapacity, false)
	h.failRead = true

	_, err := buf.ByteAt(0)
	require.Error(t, err)
	require.True(t, errors.Is(err, errInjected))

	// the failure is not sticky
	h.failRead = false
	v, err := buf.ByteAt(0)
	require.NoError(t, err)
	require.Equal(t, h.Bytes()[0], v)
}

// Reading bytes of chunks already held by either slot must not touch the
// handler again.
func TestByteBufferDataCaching(t *testing.T) {
	buf, h := newTestBuffer(t, mockChunks*DefaultCapacity, false)
	const first, last = 2, 3

	for i := uint64(first * DefaultCapacity); i < (last+1)*DefaultCapacity; i++ {
		v, err := buf.ByteAt(i)
		require.NoError(t, err)
		require.Equal(t, h.Bytes()[i], v)
	}
	for i := uint64(first * DefaultCapacity); i < (last+1)*DefaultCapacity; i++ {
		_, err := buf.ByteAt(i)
		require.NoError(t, err)
	}
	require.Equal(t, 2, h.loads)
}

func TestByteBufferBoundaryStraddle(t *testing.T) {
	buf, h := newTestBuffer(t, 4*DefaultCapacity, false)
	edge := uint64(DefaultCapacity)

	for i := 0; i < 10; i++ {
		_, err := buf.ByteAt(edge - 1)
		require.NoError(t, err)
		_, err = buf.ByteAt(edge)
		require.NoError(t, err)
	}
	require.Equal(t, 2, h.loads)
}

func TestByteBufferSingleChunkOneLoad(t *testing.T) {
	buf, h := newTestBuffer(t, 4*DefaultCapacity, false)
	for i := uint64(3 * DefaultCapacity); i < 4*DefaultCapacity; i++ {
		_, err := buf.ByteAt(i)
		require.NoError(t, err)
	}
	require.Equal(t, 1, h.loads)
}

// A modified byte reads back its new value and marks the buffer dirty; the
// medium is untouched until Save.
func TestByteBufferDataModification(t *testing.T) {
	buf, h := newTestBuffer(t, mockChunks*DefaultCapacity, false)
	size := buf.Size()
	raw := h.Bytes()

	ids := []uint64{0, size - 1, 1}
	original := []byte{0xBE, 0xAB, 0xAC}
	updated := []byte{0xEF, 0xBA, 0xDC}
	for i, id := range ids {
		raw[id] = original[i]
	}

	for i, id := range ids {
		old, err := buf.ByteAt(id)
		require.NoError(t, err)
		require.Equal(t, original[i], old)
		require.False(t, buf.IsDirty(id))

		buf.SetByte(id, updated[i])
		require.True(t, buf.IsDirty(id))
		require.True(t, buf.HasDirty())

		got, err := buf.ByteAt(id)
		require.NoError(t, err)
		require.Equal(t, updated[i], got)
		require.Equal(t, original[i], raw[id])
	}
	require.Empty(t, h.writes)
}

func TestByteBufferSetByteNoDuplicateBookkeeping(t *testing.T) {
	buf, _ := newTestBuffer(t, 4*DefaultCapacity, false)
	buf.SetByte(10, 1)
	buf.SetByte(10, 2)
	buf.SetByte(10, 3)
	buf.SetByte(11, 4)

	require.Len(t, buf.dirtyChunks[0], 2)
	v, err := buf.ByteAt(10)
	require.NoError(t, err)
	require.Equal(t, byte(3), v)
}

func TestByteBufferSetByteNeedsNoIO(t *testing.T) {
	buf, h := newTestBuffer(t, 4*DefaultCapacity, false)
	h.failRead = true

	buf.SetByte(5, 0x42)
	v, err := buf.ByteAt(5)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), v)
	require.Equal(t, 0, h.loads)
}

func TestByteBufferSaveFlushesExactlyDirtyChunks(t *testing.T) {
	buf, h := newTestBuffer(t, mockChunks*DefaultCapacity, false)
	edits := map[uint64]byte{
		2*DefaultCapacity + 5:   0x01,
		2*DefaultCapacity + 900: 0x02,
		10 * DefaultCapacity:    0x03,
		51*DefaultCapacity - 1:  0x04,
	}
	for id, v := range edits {
		buf.SetByte(id, v)
	}
	require.Equal(t, []uint64{2, 10, 50}, buf.DirtyChunks())

	require.NoError(t, buf.Save())
	require.False(t, buf.HasDirty())
	require.Equal(t, []int64{2 * DefaultCapacity, 10 * DefaultCapacity, 50 * DefaultCapacity}, h.writes)

	for id, v := range edits {
		require.Equal(t, v, h.Bytes()[id])
	}

	// evict both slots, then read everything back from the medium
	require.NoError(t, buf.Cache().LoadChunk(100))
	require.NoError(t, buf.Cache().LoadChunk(101))
	for id, v := range edits {
		got, err := buf.ByteAt(id)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestByteBufferSavePersists(t *testing.T) {
	buf, h := newTestBuffer(t, mockChunks*DefaultCapacity, false)
	h.Bytes()[0] = 0x00

	buf.SetByte(0, 0xEF)
	require.NoError(t, buf.Save())
	require.Equal(t, byte(0xEF), h.Bytes()[0])

	v, err := buf.ByteAt(0)
	require.NoError(t, err)
	require.Equal(t, byte(0xEF), v)
}

func TestByteBufferSaveReadOnly(t *testing.T) {
	buf, h := newTestBuffer(t, mockChunks*DefaultCapacity, true)
	h.Bytes()[0] = 0x00

	buf.SetByte(0, 0xEF)
	require.NoError(t, buf.Save())
	require.Equal(t, byte(0x00), h.Bytes()[0])
	require.Empty(t, h.writes)

	// the edit still lives in memory
	require.True(t, buf.HasDirty())
	v, err := buf.ByteAt(0)
	require.NoError(t, err)
	require.Equal(t, byte(0xEF), v)
}

func TestByteBufferSaveNothingDirty(t *testing.T) {
	buf, h := newTestBuffer(t, 4*DefaultCapacity, false)
	require.NoError(t, buf.Save())
	require.Equal(t, 0, h.loads)
	require.Empty(t, h.writes)
}

func TestByteBufferSaveReloadsRecentChunk(t *testing.T) {
	buf, h := newTestBuffer(t, 4*DefaultCapacity, false)
	_, err := buf.ByteAt(0)
	require.NoError(t, err)
	require.Equal(t, 1, h.loads)

	buf.SetByte(1, 0x99)
	require.NoError(t, buf.Save())
	require.Equal(t, 2, h.loads)
}

func TestByteBufferSavePartialFailure(t *testing.T) {
	buf, h := newTestBuffer(t, 8*DefaultCapacity, false)
	buf.SetByte(1*DefaultCapacity, 0x11)
	buf.SetByte(3*DefaultCapacity, 0x33)
	buf.SetByte(5*DefaultCapacity, 0x55)
	h.failAt = map[int64]bool{3 * DefaultCapacity: true}

	err := buf.Save()
	require.Error(t, err)
	var saveErr *SaveError
	require.True(t, errors.As(err, &saveErr))
	require.Equal(t, uint64(3), saveErr.Chunk)
	require.Equal(t, 1, saveErr.Flushed)
	require.True(t, errors.Is(err, errInjected))

	// chunk 1 reached the medium, 3 and 5 are still pending
	require.Equal(t, byte(0x11), h.Bytes()[1*DefaultCapacity])
	require.False(t, buf.IsDirty(1*DefaultCapacity))
	require.True(t, buf.IsDirty(3*DefaultCapacity))
	require.True(t, buf.IsDirty(5*DefaultCapacity))
	require.Equal(t, []uint64{3, 5}, buf.DirtyChunks())

	h.failAt = nil
	require.NoError(t, buf.Save())
	require.False(t, buf.HasDirty())
	require.Equal(t, byte(0x33), h.Bytes()[3*DefaultCapacity])
	require.Equal(t, byte(0x55), h.Bytes()[5*DefaultCapacity])
}

func TestByteBufferPartialFailureSyncsFlushedChunks(t *testing.T) {
	inner := newCountingHandler(4*DefaultCapacity, false)
	inner.failAt = map[int64]bool{2 * DefaultCapacity: true}
	h := &syncingHandler{countingHandler: inner}
	c, err := NewCache[uint64](h, DefaultCapacity)
	require.NoError(t, err)
	buf := New(c)

	buf.SetByte(5, 0x05)
	buf.SetByte(2*DefaultCapacity+5, 0x25)

	err = buf.Save()
	var saveErr *SaveError
	require.True(t, errors.As(err, &saveErr))
	require.Equal(t, uint64(2), saveErr.Chunk)
	require.Equal(t, 1, saveErr.Flushed)

	// chunk 0 is only forgotten once it has been synced
	require.Equal(t, 1, h.syncs)
	require.False(t, buf.IsDirty(5))
	require.True(t, buf.IsDirty(2*DefaultCapacity+5))
}

func TestByteBufferPartialFailureUnsyncedKeepsEverything(t *testing.T) {
	inner := newCountingHandler(4*DefaultCapacity, false)
	inner.failAt = map[int64]bool{2 * DefaultCapacity: true}
	h := &syncingHandler{countingHandler: inner, failSync: true}
	c, err := NewCache[uint64](h, DefaultCapacity)
	require.NoError(t, err)
	buf := New(c)

	buf.SetByte(5, 0x05)
	buf.SetByte(2*DefaultCapacity+5, 0x25)

	err = buf.Save()
	var saveErr *SaveError
	require.True(t, errors.As(err, &saveErr))
	require.Equal(t, uint64(2), saveErr.Chunk)
	require.Equal(t, 0, saveErr.Flushed)
	require.True(t, errors.Is(err, errInjected))
	require.Contains(t, err.Error(), "sync ")

	require.True(t, buf.IsDirty(5))
	require.True(t, buf.IsDirty(2*DefaultCapacity+5))
	require.Equal(t, []uint64{0, 2}, buf.DirtyChunks())

	h.failSync = false
	inner.failAt = nil
	require.NoError(t, buf.Save())
	require.False(t, buf.HasDirty())
	require.Equal(t, byte(0x05), inner.Bytes()[5])
	require.Equal(t, byte(0x25), inner.Bytes()[2*DefaultCapacity+5])
}

func TestByteBufferPartialFailureUploadsRemoteCopy(t *testing.T) {
	root := t.TempDir()
	data := make([]byte, 4*DefaultCapacity)
	require.NoError(t, os.WriteFile(filepath.Join(root, "disk.img"), data, 0o644))
	tr := &dirTransfer{root: root}

	r, err := storage.OpenRemote(context.Background(), tr, "box:/disk.img", "/disk.img", false)
	require.NoError(t, err)
	defer r.Close()
	h := &failingRemote{Remote: r, failAt: 2 * DefaultCapacity}

	c, err := NewCache[uint64](h, DefaultCapacity)
	require.NoError(t, err)
	buf := New(c)
	buf.SetByte(5, 0x05)
	buf.SetByte(2*DefaultCapacity+5, 0x25)

	err = buf.Save()
	require.Error(t, err)
	require.False(t, buf.IsDirty(5))

	// the forgotten chunk must have reached the host
	require.Equal(t, 1, tr.uploads)
	got, err := os.ReadFile(filepath.Join(root, "disk.img"))
	require.NoError(t, err)
	require.Equal(t, byte(0x05), got[5])
	require.Equal(t, byte(0), got[2*DefaultCapacity+5])
}

func TestByteBufferPartialFailureRemoteUploadFails(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "disk.img"), make([]byte, 4*DefaultCapacity), 0o644))
	tr := &dirTransfer{root: root, failUpload: true}

	r, err := storage.OpenRemote(context.Background(), tr, "box:/disk.img", "/disk.img", false)
	require.NoError(t, err)
	defer r.Close()
	h := &failingRemote{Remote: r, failAt: 2 * DefaultCapacity}

	c, err := NewCache[uint64](h, DefaultCapacity)
	require.NoError(t, err)
	buf := New(c)
	buf.SetByte(5, 0x05)
	buf.SetByte(2*DefaultCapacity+5, 0x25)

	require.Error(t, buf.Save())
	require.True(t, buf.IsDirty(5))
	require.Equal(t, 0, tr.uploads)
}

func TestByteBufferSaveLoadFailure(t *testing.T) {
	buf, h := newTestBuffer(t, 8*DefaultCapacity, false)
	buf.SetByte(2*DefaultCapacity, 0x22)
	h.failRead = true

	err := buf.Save()
	var saveErr *SaveError
	require.True(t, errors.As(err, &saveErr))
	require.Equal(t, uint64(2), saveErr.Chunk)
	require.Equal(t, 0, saveErr.Flushed)
	require.True(t, buf.IsDirty(2*DefaultCapacity))
	require.Empty(t, h.writes)
}

func TestByteBufferSaveSyncs(t *testing.T) {
	inner := newCountingHandler(4*DefaultCapacity, false)
	h := &syncingHandler{countingHandler: inner}
	c, err := NewCache[uint64](h, DefaultCapacity)
	require.NoError(t, err)
	buf := New(c)

	require.NoError(t, buf.Save())
	require.Equal(t, 0, h.syncs)

	buf.SetByte(7, 0x07)
	require.NoError(t, buf.Save())
	require.Equal(t, 1, h.syncs)
}

func TestByteBufferSyncFailureKeepsEdits(t *testing.T) {
	inner := newCountingHandler(4*DefaultCapacity, false)
	h := &syncingHandler{countingHandler: inner, failSync: true}
	c, err := NewCache[uint64](h, DefaultCapacity)
	require.NoError(t, err)
	buf := New(c)

	buf.SetByte(7, 0x07)
	err = buf.Save()
	require.True(t, errors.Is(err, errInjected))
	require.True(t, buf.HasDirty())

	h.failSync = false
	require.NoError(t, buf.Save())
	require.False(t, buf.HasDirty())
	require.Equal(t, 1, h.syncs)
}

func TestByteBufferSaveEvictsStaleFallback(t *testing.T) {
	buf, h := newTestBuffer(t, 4*DefaultCapacity, false)
	_, err := buf.ByteAt(0) // chunk 0 becomes recent
	require.NoError(t, err)

	buf.SetByte(3, 0x33)
	require.NoError(t, buf.Save())
	// the reload put a second copy of chunk 0 in the other slot
	require.Equal(t, uint64(0), buf.Cache().Recent().ID)
	require.False(t, buf.Cache().Fallback().Loaded())

	v, err := buf.ByteAt(3)
	require.NoError(t, err)
	require.Equal(t, byte(0x33), v)
	require.Equal(t, byte(0x33), h.Bytes()[3])
}

func TestByteBuffer32BitOffsets(t *testing.T) {
	h := newCountingHandler(3*DefaultCapacity+7, false)
	c, err := NewCache[uint32](h, DefaultCapacity)
	require.NoError(t, err)
	buf := New(c)

	last := buf.Size() - 1
	v, err := buf.ByteAt(last)
	require.NoError(t, err)
	require.Equal(t, h.Bytes()[last], v)

	buf.SetByte(last, ^v)
	require.NoError(t, buf.Save())
	require.Equal(t, ^v, h.Bytes()[last])
}

// The two-slot scenario: a 255 chunk medium, chunks 2 and 3 read twice.
func TestByteBufferScenario(t *testing.T) {
	buf, h := newTestBuffer(t, mockChunks*DefaultCapacity, false)
	require.Equal(t, uint64(mockChunks*DefaultCapacity), buf.Size())

	for pass := 0; pass < 2; pass++ {
		for i := uint64(2048); i <= 3071; i++ {
			_, err := buf.ByteAt(i)
			require.NoError(t, err)
		}
	}
	require.Equal(t, 2, h.loads)

	buf.SetByte(0, 0xEF)
	require.NoError(t, buf.Save())
	require.Equal(t, byte(0xEF), h.Bytes()[0])

	ro := newCountingHandler(mockChunks*DefaultCapacity, true)
	before := ro.Bytes()[0]
	c, err := NewCache[uint64](ro, DefaultCapacity)
	require.NoError(t, err)
	roBuf := New(c)
	roBuf.SetByte(0, before^0xFF)
	require.NoError(t, roBuf.Save())
	require.Equal(t, before, ro.Bytes()[0])
}
