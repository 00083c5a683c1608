// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Package slabindex maps a slab's base offset to its handle with a
// separately-chained hash table sized for the modest slab counts this
// allocator expects (spec.md §4.3).
package slabindex

import (
	"fmt"
	"sync"

	"github.com/fmstephe/nvmalloc/internal/slab"
)

// DefaultCapacity is the default bucket count: a prime near the expected
// slab count for modest regions (spec.md §4.3).
const DefaultCapacity = 101

type entry struct {
	offset uint64
	slab   *slab.Slab
	next   *entry
}

// Index is a fixed-capacity, separately-chained hash table keyed by
// slab-base-offset. lookup takes a read lock; insert and remove take a
// write lock (spec.md §5).
type Index struct {
	slabSize uint64
	capacity uint64

	mu      sync.RWMutex
	buckets []*entry
	count   int
}

// New returns an Index with the given bucket capacity. slabSize is used to
// divide offsets down to slab indices before hashing, so that consecutive
// slabs land in consecutive buckets (spec.md §4.3).
func New(capacity int, slabSize uint64) *Index {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Index{
		slabSize: slabSize,
		capacity: uint64(capacity),
		buckets:  make([]*entry, capacity),
	}
}

func (x *Index) bucket(offset uint64) uint64 {
	return (offset / x.slabSize) % x.capacity
}

// Insert adds slab s under key offset. Returns an error if the key is
// already present.
func (x *Index) Insert(offset uint64, s *slab.Slab) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	b := x.bucket(offset)
	for e := x.buckets[b]; e != nil; e = e.next {
		if e.offset == offset {
			return fmt.Errorf("slabindex: offset %d already present", offset)
		}
	}

	x.buckets[b] = &entry{offset: offset, slab: s, next: x.buckets[b]}
	x.count++
	return nil
}

// Lookup returns the slab registered at offset, or nil if none is.
func (x *Index) Lookup(offset uint64) *slab.Slab {
	x.mu.RLock()
	defer x.mu.RUnlock()

	b := x.bucket(offset)
	for e := x.buckets[b]; e != nil; e = e.next {
		if e.offset == offset {
			return e.slab
		}
	}
	return nil
}

// Remove deletes and returns the slab registered at offset, or nil if none
// was present.
func (x *Index) Remove(offset uint64) *slab.Slab {
	x.mu.Lock()
	defer x.mu.Unlock()

	b := x.bucket(offset)
	var prev *entry
	for e := x.buckets[b]; e != nil; e = e.next {
		if e.offset == offset {
			if prev == nil {
				x.buckets[b] = e.next
			} else {
				prev.next = e.next
			}
			x.count--
			return e.slab
		}
		prev = e
	}
	return nil
}

// Count returns the number of entries currently registered.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count
}

// CheckInvariants verifies count equals the sum of chain lengths and that
// every chain's keys are unique (spec.md §8). Intended for tests.
func (x *Index) CheckInvariants() error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	total := 0
	for _, b := range x.buckets {
		seen := map[uint64]bool{}
		for e := b; e != nil; e = e.next {
			if seen[e.offset] {
				return fmt.Errorf("slabindex: duplicate key %d in one chain", e.offset)
			}
			seen[e.offset] = true
			total++
		}
	}

	if total != x.count {
		return fmt.Errorf("slabindex: count %d != chain length sum %d", x.count, total)
	}
	return nil
}
