// Package cache provides a direct-mapped cache model using Akita cache
// components.
package cache

import (
	"errors"
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Size limits. Sizes are counted in slots.
const (
	MinSize     = 8
	MaxSize     = 1024
	DefaultSize = 8
)

// blockSize is the number of bytes covered by one slot: the two low key
// bits never take part in indexing.
const (
	blockSize  = 4
	blockShift = 2
)

// ErrInvalidSize is returned for a size that is not a power of two in
// [MinSize, MaxSize].
var ErrInvalidSize = errors.New("invalid cache size")

// ValidateSize checks that size is a power of two in [MinSize, MaxSize].
func ValidateSize(size int) error {
	if size < MinSize || size > MaxSize || size&(size-1) != 0 {
		return fmt.Errorf("%w: %d (must be a power of 2 in [%d, %d])",
			ErrInvalidSize, size, MinSize, MaxSize)
	}
	return nil
}

// Log2 returns log2 of a power-of-two size by repeated right shift.
func Log2(size int) uint {
	var n uint
	for size > 1 {
		size >>= 1
		n++
	}
	return n
}

// SlotIndex returns the slot a key maps to: (key >> 2) & (size - 1).
func SlotIndex(size int, key uint32) int {
	return int((key >> blockShift) & uint32(size-1))
}

// Tag returns the bits of key above the index bits:
// key >> (2 + log2(size)).
func Tag(size int, key uint32) uint32 {
	return key >> (blockShift + Log2(size))
}

// Slot is the observable state of one cache slot.
type Slot struct {
	Valid bool
	Tag   uint32
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Requests  uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Add accumulates other into s.
func (s *Statistics) Add(other Statistics) {
	s.Requests += other.Requests
	s.Hits += other.Hits
	s.Misses += other.Misses
	s.Evictions += other.Evictions
}

// HitRate returns hits as a percentage of requests.
func (s Statistics) HitRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return 100 * float64(s.Hits) / float64(s.Requests)
}

// MissRate returns misses as a percentage of requests.
func (s Statistics) MissRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return 100 * float64(s.Misses) / float64(s.Requests)
}

// Cache is a direct-mapped cache: size sets of one way, one word per
// block. Only tags and valid bits are modelled; no data is stored.
type Cache struct {
	size      int
	indexBits uint

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	stats Statistics
}

// New creates an empty cache with size slots. Invalid sizes are rejected
// before anything is allocated.
func New(size int) (*Cache, error) {
	if err := ValidateSize(size); err != nil {
		return nil, err
	}

	return &Cache{
		size:      size,
		indexBits: Log2(size),
		directory: akitacache.NewDirectory(
			size,
			1,
			blockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}, nil
}

// Size returns the number of slots.
func (c *Cache) Size() int {
	return c.size
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// Access records one request for key and reports whether it hit.
//
// An invalid slot misses and is filled. A valid slot with the same tag
// hits. A valid slot with a different tag misses and is overwritten.
func (c *Cache) Access(key uint32) bool {
	c.stats.Requests++

	// The directory tags blocks by their block-aligned address, which
	// within one set is equivalent to comparing Tag(size, key).
	blockAddr := uint64(key) &^ (blockSize - 1)

	block := c.directory.Lookup(0, blockAddr) // PID=0
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return true
	}

	c.stats.Misses++

	victim := c.directory.FindVictim(blockAddr)
	if victim.IsValid {
		c.stats.Evictions++
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	c.directory.Visit(victim)

	return false
}

// Slot returns the state of slot i.
func (c *Cache) Slot(i int) Slot {
	block := c.directory.GetSets()[i].Blocks[0]
	if !block.IsValid {
		return Slot{}
	}
	return Slot{
		Valid: true,
		Tag:   uint32(block.Tag >> (blockShift + c.indexBits)),
	}
}

// Slots returns the state of every slot in index order.
func (c *Cache) Slots() []Slot {
	slots := make([]Slot, c.size)
	for i := range slots {
		slots[i] = c.Slot(i)
	}
	return slots
}

// Reset invalidates all slots and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
