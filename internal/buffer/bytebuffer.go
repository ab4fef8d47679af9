package buffer

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// SaveError reports a save that stopped part way. Flushed counts the chunks
// that were written and synced before Chunk failed; those are no longer
// dirty. Chunk and every later chunk still are.
type SaveError struct {
	Chunk   uint64
	Flushed int
	Err     error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save stopped at chunk %d after %d flushed: %v", e.Chunk, e.Flushed, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// ByteBuffer overlays pending byte edits on a Cache. Edits stay in memory
// until Save writes back the chunks that contain them.
//
// Offsets are not checked against Size; callers keep them in range.
type ByteBuffer[O Offset] struct {
	cache *Cache[O]
	// absolute offset -> pending value
	dirtyBytes map[O]byte
	// chunk id -> chunk-relative offsets of its dirty bytes
	dirtyChunks map[O][]O
}

// New returns a ByteBuffer with no pending edits.
func New[O Offset](cache *Cache[O]) *ByteBuffer[O] {
	return &ByteBuffer[O]{
		cache:       cache,
		dirtyBytes:  make(map[O]byte),
		dirtyChunks: make(map[O][]O),
	}
}

// ByteAt returns the value at id: the pending edit if any, otherwise the
// byte from whichever slot holds its chunk, loading the chunk on a miss.
func (b *ByteBuffer[O]) ByteAt(id O) (byte, error) {
	if v, ok := b.dirtyBytes[id]; ok {
		return v, nil
	}

	chunkID, rel := id/b.cache.capacity, id%b.cache.capacity
	if ch := b.cache.Recent(); ch.ID == chunkID {
		return ch.Data[rel], nil
	}
	if ch := b.cache.Fallback(); ch.ID == chunkID {
		return ch.Data[rel], nil
	}

	if err := b.cache.LoadChunk(chunkID); err != nil {
		return 0, err
	}
	return b.cache.Recent().Data[rel], nil
}

// SetByte records v as the pending value of id.
func (b *ByteBuffer[O]) SetByte(id O, v byte) {
	if _, ok := b.dirtyBytes[id]; !ok {
		chunkID := id / b.cache.capacity
		b.dirtyChunks[chunkID] = append(b.dirtyChunks[chunkID], id%b.cache.capacity)
	}
	b.dirtyBytes[id] = v
}

func (b *ByteBuffer[O]) IsDirty(id O) bool {
	_, ok := b.dirtyBytes[id]
	return ok
}

func (b *ByteBuffer[O]) HasDirty() bool { return len(b.dirtyBytes) != 0 }

// DirtyChunks returns the ids of chunks holding pending edits, ascending.
func (b *ByteBuffer[O]) DirtyChunks() []O {
	return slices.Sorted(maps.Keys(b.dirtyChunks))
}

// Save writes every chunk with pending edits back to the medium in
// ascending chunk order, then syncs the handler. Each chunk is reloaded
// before the edits are applied to it. It does nothing when there are no
// edits or the medium is read-only.
//
// A chunk failure stops the loop and returns a *SaveError. The chunks
// written before it are synced and then forgotten; if that sync fails too,
// nothing is forgotten. A sync failure keeps all edits pending so that a
// retry writes them again.
func (b *ByteBuffer[O]) Save() error {
	if !b.HasDirty() || b.cache.ReadOnly() {
		return nil
	}

	flushed := make([]O, 0, len(b.dirtyChunks))
	for _, chunkID := range b.DirtyChunks() {
		if err := b.flush(chunkID); err != nil {
			saveErr := &SaveError{Chunk: uint64(chunkID), Err: err}
			if len(flushed) == 0 {
				return saveErr
			}
			if syncErr := b.cache.Sync(); syncErr != nil {
				saveErr.Err = errors.Join(err, fmt.Errorf("sync %s: %w", b.cache.Name(), syncErr))
				return saveErr
			}
			b.forget(flushed)
			saveErr.Flushed = len(flushed)
			return saveErr
		}
		flushed = append(flushed, chunkID)
	}

	if err := b.cache.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", b.cache.Name(), err)
	}
	clear(b.dirtyBytes)
	clear(b.dirtyChunks)
	return nil
}

func (b *ByteBuffer[O]) flush(chunkID O) error {
	if err := b.cache.LoadChunk(chunkID); err != nil {
		return err
	}
	ch := b.cache.Recent()
	if ch.ID != chunkID {
		panic(fmt.Sprintf("buffer: recent slot holds chunk %d after loading %d", ch.ID, chunkID))
	}

	base := chunkID * b.cache.capacity
	for _, rel := range b.dirtyChunks[chunkID] {
		ch.Data[rel] = b.dirtyBytes[base+rel]
	}
	if err := b.cache.SaveChunk(ch); err != nil {
		return err
	}
	// the fallback may still hold the pre-save copy of this chunk
	if fb := b.cache.Fallback(); fb.ID == chunkID {
		fb.ID = Unloaded[O]()
		fb.Count = 0
	}
	return nil
}

func (b *ByteBuffer[O]) forget(chunks []O) {
	for _, chunkID := range chunks {
		base := chunkID * b.cache.capacity
		for _, rel := range b.dirtyChunks[chunkID] {
			delete(b.dirtyBytes, base+rel)
		}
		delete(b.dirtyChunks, chunkID)
	}
}

func (b *ByteBuffer[O]) Cache() *Cache[O] { return b.cache }
func (b *ByteBuffer[O]) Size() O          { return b.cache.Size() }
func (b *ByteBuffer[O]) Name() string     { return b.cache.Name() }
func (b *ByteBuffer[O]) ReadOnly() bool   { return b.cache.ReadOnly() }
