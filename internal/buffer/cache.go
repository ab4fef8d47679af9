// Package buffer implements random byte access over a storage.Handler while
// holding at most two chunks of the medium in memory.
package buffer

import (
	"errors"
	"fmt"
	"log"

	"hexit/internal/storage"
)

// DefaultCapacity is the chunk size used when none is given.
const DefaultCapacity = 1024

var (
	// ErrReadOnly is returned when saving through a read-only handler.
	ErrReadOnly = errors.New("buffer: read-only")
	// ErrUnloaded is returned when saving a slot that holds no chunk.
	ErrUnloaded = errors.New("buffer: chunk not loaded")
	// ErrTooLarge is returned when the medium cannot be addressed by the
	// chosen offset type.
	ErrTooLarge = errors.New("buffer: size exceeds offset range")
)

// Offset addresses bytes and chunks.
type Offset interface {
	~uint32 | ~uint64
}

// Unloaded is the chunk id of an empty slot.
func Unloaded[O Offset]() O {
	return ^O(0)
}

// Chunk is one cache slot. Only Data[:Count] is meaningful.
type Chunk[O Offset] struct {
	ID    O
	Count O
	Data  []byte
}

// Loaded reports whether the slot holds a chunk.
func (c *Chunk[O]) Loaded() bool {
	return c.ID != Unloaded[O]()
}

// Cache keeps two chunk slots. Every successful LoadChunk fills the fallback
// slot and then swaps the roles, so the previous recent chunk stays
// available as the fallback.
//
// The slot accessors perform no checks; compare Chunk.ID with the wanted
// chunk before trusting Data.
type Cache[O Offset] struct {
	handler  storage.Handler
	capacity O
	size     O
	total    O
	slots    [2]Chunk[O]
	recent   int
	// spare receives reads and is traded with the fallback slot's buffer
	// once a read completes
	spare []byte
}

// NewCache attaches a cache to h. A zero capacity selects DefaultCapacity.
func NewCache[O Offset](h storage.Handler, capacity O) (*Cache[O], error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if h.Size() < 0 || uint64(h.Size()) > uint64(^O(0)) {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, h.Name(), h.Size())
	}
	size := O(h.Size())
	total := size / capacity
	if size%capacity != 0 {
		total++
	}

	c := &Cache[O]{
		handler:  h,
		capacity: capacity,
		size:     size,
		total:    total,
		recent:   1,
		spare:    make([]byte, capacity),
	}
	for i := range c.slots {
		c.slots[i] = Chunk[O]{ID: Unloaded[O](), Data: make([]byte, capacity)}
	}
	return c, nil
}

// LoadChunk reads chunk id into the fallback slot and makes it the recent
// one. On failure both slots and their roles are left exactly as they were.
func (c *Cache[O]) LoadChunk(id O) error {
	if err := c.handler.SeekTo(c.offset(id)); err != nil {
		return fmt.Errorf("load chunk %d: %w", id, err)
	}

	count := c.capacity
	if id == c.total-1 && c.size%c.capacity != 0 {
		count = c.size % c.capacity
	}

	if err := c.handler.Read(c.spare[:count]); err != nil {
		log.Printf("[cache] %s: chunk %d unreadable: %v", c.handler.Name(), id, err)
		return fmt.Errorf("load chunk %d: %w", id, err)
	}
	target := &c.slots[c.recent^1]
	target.Data, c.spare = c.spare, target.Data
	target.ID = id
	target.Count = count
	c.recent ^= 1
	return nil
}

// SaveChunk writes Data[:Count] of ch back to its place in the medium.
func (c *Cache[O]) SaveChunk(ch *Chunk[O]) error {
	if c.ReadOnly() {
		return ErrReadOnly
	}
	if !ch.Loaded() {
		return ErrUnloaded
	}
	if err := c.handler.SeekTo(c.offset(ch.ID)); err != nil {
		return fmt.Errorf("save chunk %d: %w", ch.ID, err)
	}
	if err := c.handler.Write(ch.Data[:ch.Count]); err != nil {
		return fmt.Errorf("save chunk %d: %w", ch.ID, err)
	}
	return nil
}

// Sync forwards to the handler when it buffers writes.
func (c *Cache[O]) Sync() error {
	if s, ok := c.handler.(storage.Syncer); ok {
		return s.Sync()
	}
	return nil
}

func (c *Cache[O]) offset(id O) int64 {
	return int64(uint64(id) * uint64(c.capacity))
}

func (c *Cache[O]) Recent() *Chunk[O]   { return &c.slots[c.recent] }
func (c *Cache[O]) Fallback() *Chunk[O] { return &c.slots[c.recent^1] }

func (c *Cache[O]) TotalChunks() O { return c.total }
func (c *Cache[O]) Capacity() O    { return c.capacity }
func (c *Cache[O]) Size() O        { return c.size }
func (c *Cache[O]) Name() string   { return c.handler.Name() }
func (c *Cache[O]) ReadOnly() bool { return c.handler.ReadOnly() }
