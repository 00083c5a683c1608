// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Package slab implements a single fixed-size-block slab: an authoritative
// bitmap plus a small FIFO cache of recently freed block indices.
package slab

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// ErrFull is returned by Alloc when every block in the slab is allocated.
var ErrFull = errors.New("slab: full")

// ErrConflict is returned by Restore when the requested block index is
// already marked allocated.
var ErrConflict = errors.New("slab: block already allocated")

// CacheCapacity bounds the FIFO cache of recently freed block indices
// (spec.md §3, CACHE_CAPACITY).
const CacheCapacity = 64

// Slab owns the bitmap, FIFO cache and counters for one fixed-size-block
// extent of the NVM region. All mutating operations hold mu for their
// duration (spec.md §5).
type Slab struct {
	baseOffset uint64
	sizeClass  int
	blockSize  uint64
	totalBlocks uint64

	// NextInClass threads this slab onto its size class's list. It is
	// read and written exclusively by the Allocator under the class-list
	// lock, never under mu, matching spec.md §5's lock ordering
	// (class-list lock is acquired before any per-slab lock).
	NextInClass *Slab

	mu             sync.Mutex
	bitmap         *bitset.BitSet
	allocatedCount uint64

	// cache is a fixed-capacity FIFO ring buffer of block indices that
	// are clear in the bitmap and ready to hand out without a bitmap
	// scan. head is the next index to pop, count is the current
	// occupancy.
	cache [CacheCapacity]uint64
	head  int
	count int
}

// Create returns a new, empty slab of the given size class carved from the
// extent starting at baseOffset.
func Create(sizeClass int, blockSize, slabSize, baseOffset uint64) *Slab {
	totalBlocks := slabSize / blockSize
	return &Slab{
		baseOffset:  baseOffset,
		sizeClass:   sizeClass,
		blockSize:   blockSize,
		totalBlocks: totalBlocks,
		bitmap:      bitset.New(uint(totalBlocks)),
	}
}

// BaseOffset returns the slab's base offset in the NVM region.
func (s *Slab) BaseOffset() uint64 {
	return s.baseOffset
}

// SizeClass returns the index into the size-class table this slab serves.
func (s *Slab) SizeClass() int {
	return s.sizeClass
}

// BlockSize returns the fixed block size this slab carves its extent into.
func (s *Slab) BlockSize() uint64 {
	return s.blockSize
}

// TotalBlocks returns the number of blocks this slab holds.
func (s *Slab) TotalBlocks() uint64 {
	return s.totalBlocks
}

// Alloc returns a previously-unallocated block index, preferring the FIFO
// cache over a bitmap scan. Returns ErrFull if every block is allocated.
func (s *Slab) Alloc() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count > 0 {
		idx := s.cache[s.head]
		s.head = (s.head + 1) % CacheCapacity
		s.count--

		s.bitmap.Set(uint(idx))
		s.allocatedCount++
		return idx, nil
	}

	idx, ok := s.bitmap.NextClear(0)
	if !ok || idx >= uint(s.totalBlocks) {
		return 0, ErrFull
	}

	s.bitmap.Set(idx)
	s.allocatedCount++
	return uint64(idx), nil
}

// Free marks blockIndex as free. If the cache has room the index is pushed
// onto the cache tail; otherwise the free is reflected only in the bitmap,
// which remains authoritative. Freeing an index that is not allocated is a
// fatal double-free fault.
func (s *Slab) Free(blockIndex uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bitmap.Test(uint(blockIndex)) {
		panic(fmt.Errorf("slab: double free of block %d in slab at base %d", blockIndex, s.baseOffset))
	}

	s.bitmap.Clear(uint(blockIndex))
	s.allocatedCount--

	if s.count < CacheCapacity {
		tail := (s.head + s.count) % CacheCapacity
		s.cache[tail] = blockIndex
		s.count++
	}
}

// Restore marks blockIndex allocated directly in the authoritative bitmap,
// bypassing the cache (cache state from a prior lifetime is not
// reconstructible). Returns ErrConflict if the block is already allocated.
// If blockIndex is sitting in the FIFO cache from an earlier Free, it is
// evicted first so the cache never hands out an index Restore just claimed.
func (s *Slab) Restore(blockIndex uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bitmap.Test(uint(blockIndex)) {
		return ErrConflict
	}

	s.evictFromCache(blockIndex)

	s.bitmap.Set(uint(blockIndex))
	s.allocatedCount++
	return nil
}

// evictFromCache removes blockIndex from the FIFO cache if present,
// preserving the relative order of the remaining entries.
func (s *Slab) evictFromCache(blockIndex uint64) {
	remaining := make([]uint64, 0, s.count)
	for i := 0; i < s.count; i++ {
		idx := s.cache[(s.head+i)%CacheCapacity]
		if idx != blockIndex {
			remaining = append(remaining, idx)
		}
	}
	if len(remaining) == s.count {
		return
	}

	s.head = 0
	s.count = len(remaining)
	copy(s.cache[:], remaining)
}

// IsFull reports whether every block in the slab is allocated.
func (s *Slab) IsFull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocatedCount == s.totalBlocks
}

// IsEmpty reports whether no block in the slab is allocated.
func (s *Slab) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocatedCount == 0
}

// AllocatedCount returns the number of blocks currently marked allocated in
// the authoritative bitmap.
func (s *Slab) AllocatedCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocatedCount
}

// CheckInvariants verifies the at-rest invariants from spec.md §8:
// allocatedCount equals the bitmap popcount, and every cached index is
// clear in the bitmap with no duplicates. Intended for tests.
func (s *Slab) CheckInvariants() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if got, want := s.allocatedCount, uint64(s.bitmap.Count()); got != want {
		return fmt.Errorf("slab: allocatedCount %d != bitmap popcount %d", got, want)
	}

	seen := make(map[uint64]bool, s.count)
	for i := 0; i < s.count; i++ {
		idx := s.cache[(s.head+i)%CacheCapacity]
		if s.bitmap.Test(uint(idx)) {
			return fmt.Errorf("slab: cached index %d is set in bitmap", idx)
		}
		if seen[idx] {
			return fmt.Errorf("slab: cached index %d appears more than once", idx)
		}
		seen[idx] = true
	}

	return nil
}
