// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Package nvmalloc is the top-level façade of a heap allocator that carves
// a fixed, contiguous region of byte-addressable non-volatile memory into
// small, fixed-size objects. See docs.go for the full usage description.
package nvmalloc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fmstephe/flib/fmath"

	"github.com/fmstephe/nvmalloc/internal/segment"
	"github.com/fmstephe/nvmalloc/internal/slab"
	"github.com/fmstephe/nvmalloc/internal/slabindex"
)

// classList is the per-size-class list of slabs threaded through
// slab.Slab.NextInClass, guarded by its own lock. This is the outermost
// lock in the ordering described in spec.md §5: class-list lock ->
// segment-manager lock -> slab-index lock -> per-slab lock.
type classList struct {
	mu   sync.Mutex
	head *slab.Slab
}

// Allocator is the top-level handle: it routes requests by size class,
// pools slabs per class, and maintains an offset-to-slab index so Free is
// O(1) on the fast path.
type Allocator struct {
	regionBase uint64
	regionSize uint64

	segments *segment.Manager
	index    *slabindex.Index
	classes  [len(sizeClasses)]classList

	allocs    atomic.Uint64
	frees     atomic.Uint64
	slabCount atomic.Int64
}

// Create initializes an Allocator managing regionSize bytes starting at
// regionBase. regionBase is an opaque handle (conventionally a pointer or
// offset into the caller's NVM mapping) never dereferenced by this package;
// it must itself be slab-aligned, and regionSize must be a multiple of
// SlabSize and at least SlabSize (spec.md §3: the region's start offset is
// slab-aligned).
func Create(regionBase, regionSize uint64) (*Allocator, error) {
	if next := uint64(fmath.NxtPowerOfTwo(int64(SlabSize))); next != SlabSize {
		return nil, fmt.Errorf("nvmalloc: SlabSize %d is not a power of two", SlabSize)
	}
	if regionBase%SlabSize != 0 {
		return nil, fmt.Errorf("nvmalloc: regionBase %d is not slab-aligned", regionBase)
	}

	segments, err := segment.New(regionSize, regionBase, SlabSize)
	if err != nil {
		return nil, fmt.Errorf("nvmalloc: %w", err)
	}

	return &Allocator{
		regionBase: regionBase,
		regionSize: regionSize,
		segments:   segments,
		index:      slabindex.New(slabindex.DefaultCapacity, SlabSize),
	}, nil
}

// Destroy releases every slab and all metadata owned by the allocator.
// After Destroy returns, the Allocator must not be used again. The backing
// NVM bytes themselves are untouched; only the DRAM-side metadata is freed
// (spec.md §1, persistence and NVM lifetime are a higher layer's concern).
func (a *Allocator) Destroy() {
	for i := range a.classes {
		a.classes[i].mu.Lock()
		a.classes[i].head = nil
		a.classes[i].mu.Unlock()
	}
	a.index = nil
	a.segments = nil
}

// Alloc returns an offset for a newly-allocated block of size bytes,
// 1 <= size <= MaxAllocSize. Size-class routing, slab selection/creation
// and block allocation follow spec.md §4.4.
func (a *Allocator) Alloc(size uint64) (uint64, error) {
	class, ok := sizeClassFor(size)
	if !ok {
		return 0, ErrSizeRejected
	}

	cl := &a.classes[class]
	cl.mu.Lock()
	defer cl.mu.Unlock()

	s := firstNonFull(cl.head)
	if s == nil {
		var err error
		s, err = a.createSlab(class, cl)
		if err != nil {
			return 0, err
		}
	}

	blockIdx, err := s.Alloc()
	if err != nil {
		// A slab picked because it was not full just reported Full;
		// this can only happen under a bug in the not-full scan.
		return 0, fmt.Errorf("nvmalloc: internal error: selected slab unexpectedly full: %w", err)
	}

	a.allocs.Add(1)
	return s.BaseOffset() + blockIdx*s.BlockSize(), nil
}

// createSlab asks the segment manager for a fresh extent, constructs a
// slab over it, registers it in the index and pushes it onto cl. Must be
// called with cl.mu held (spec.md §5 lock ordering: class-list -> segment
// -> index).
func (a *Allocator) createSlab(class int, cl *classList) (*slab.Slab, error) {
	offset, err := a.segments.AllocExtent()
	if err != nil {
		if errors.Is(err, segment.ErrOutOfSpace) {
			return nil, ErrOutOfSpace
		}
		return nil, err
	}

	s := slab.Create(class, sizeClasses[class], SlabSize, offset)

	if err := a.index.Insert(offset, s); err != nil {
		// Roll back the claimed extent before surfacing failure
		// (spec.md §7: any extent claimed must be returned before
		// the operation is declared failed).
		a.segments.FreeExtent(offset)
		return nil, fmt.Errorf("nvmalloc: %w", err)
	}

	s.NextInClass = cl.head
	cl.head = s
	a.slabCount.Add(1)

	return s, nil
}

// firstNonFull walks a class list and returns the first slab that is not
// full, or nil if every slab in the list is full (or the list is empty).
func firstNonFull(head *slab.Slab) *slab.Slab {
	for s := head; s != nil; s = s.NextInClass {
		if !s.IsFull() {
			return s
		}
	}
	return nil
}

// Free releases the block at offset, previously returned by Alloc or
// Restore. An offset whose slab base is not registered is a fatal
// programming error and panics (spec.md §7, UnmanagedOffset).
func (a *Allocator) Free(offset uint64) {
	slabBase := (offset / SlabSize) * SlabSize

	s := a.index.Lookup(slabBase)
	if s == nil {
		panic(fmt.Errorf("nvmalloc: free of unmanaged offset %d", offset))
	}

	blockIdx := (offset - s.BaseOffset()) / s.BlockSize()
	s.Free(blockIdx)
	a.frees.Add(1)

	if !s.IsEmpty() {
		return
	}

	a.maybeRetire(s)
}

// maybeRetire retires s if it is empty and another slab of the same class
// exists, keeping at least one slab per class as a warm buffer (spec.md
// §4.4). s's own slab lock is not held here (Free above already acquired
// and released it), matching the lock-drop-before-retirement rule in
// spec.md §5.
func (a *Allocator) maybeRetire(s *slab.Slab) {
	class := s.SizeClass()
	cl := &a.classes[class]

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Re-check emptiness under the class lock: another goroutine may
	// have allocated from s between Free's unlock and here.
	if !s.IsEmpty() {
		return
	}

	if cl.head == s && s.NextInClass == nil {
		// s is the sole slab in this class; retention policy keeps it.
		return
	}

	if !unlinkFromClass(cl, s) {
		// Already unlinked by a concurrent retirement; nothing to do.
		return
	}

	a.index.Remove(s.BaseOffset())
	a.segments.FreeExtent(s.BaseOffset())
	a.slabCount.Add(-1)
}

// unlinkFromClass removes s from cl's list, returning false if s was not
// found (already removed).
func unlinkFromClass(cl *classList, s *slab.Slab) bool {
	if cl.head == s {
		cl.head = s.NextInClass
		s.NextInClass = nil
		return true
	}

	for cur := cl.head; cur != nil; cur = cur.NextInClass {
		if cur.NextInClass == s {
			cur.NextInClass = s.NextInClass
			s.NextInClass = nil
			return true
		}
	}
	return false
}

// Restore reconstructs allocator metadata for a block known to be live
// from a prior lifetime: it installs (or reuses) a slab at the base offset
// implied by offset, and marks the specific block allocated. size
// determines the size class and must match any slab already installed at
// that base (spec.md §4.4).
func (a *Allocator) Restore(offset, size uint64) error {
	class, ok := sizeClassFor(size)
	if !ok {
		return ErrSizeRejected
	}

	slabBase := (offset / SlabSize) * SlabSize

	cl := &a.classes[class]
	cl.mu.Lock()
	defer cl.mu.Unlock()

	s := a.index.Lookup(slabBase)
	if s != nil {
		if s.SizeClass() != class {
			return ErrRestoreConflict
		}
	} else {
		if err := a.segments.ClaimAt(slabBase); err != nil {
			if errors.Is(err, segment.ErrUnavailable) {
				return ErrRestoreConflict
			}
			return err
		}

		s = slab.Create(class, sizeClasses[class], SlabSize, slabBase)
		if err := a.index.Insert(slabBase, s); err != nil {
			a.segments.FreeExtent(slabBase)
			return fmt.Errorf("nvmalloc: %w", err)
		}

		s.NextInClass = cl.head
		cl.head = s
		a.slabCount.Add(1)
	}

	blockIdx := (offset - slabBase) / s.BlockSize()
	if err := s.Restore(blockIdx); err != nil {
		return ErrRestoreConflict
	}

	return nil
}

// Stats is a diagnostic snapshot of allocator-wide counters. Not part of
// spec.md's external contract (spec.md §6); added in the same spirit as
// the teacher repo's pointerstore.Store.Stats().
type Stats struct {
	Allocs int
	Frees  int
	Live   int
	Slabs  int
}

// Stats returns a snapshot of allocation counters across all size classes.
func (a *Allocator) Stats() Stats {
	allocs := a.allocs.Load()
	frees := a.frees.Load()
	return Stats{
		Allocs: int(allocs),
		Frees:  int(frees),
		Live:   int(allocs - frees),
		Slabs:  int(a.slabCount.Load()),
	}
}

// FreeBytes returns the number of bytes currently unclaimed in the
// segment manager's free list. Exposed for the at-rest invariant in
// spec.md §8 (free bytes + SlabSize*liveSlabs == region size).
func (a *Allocator) FreeBytes() uint64 {
	return a.segments.FreeBytes()
}

// RegionSize returns the total size of the NVM region this allocator manages.
func (a *Allocator) RegionSize() uint64 {
	return a.regionSize
}
