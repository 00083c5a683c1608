// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// # Usage
//
// nvmalloc carves a fixed, contiguous region of byte-addressable
// non-volatile memory into small, fixed-size objects. It is the low-level
// memory manager of a larger storage system: callers hand it a region
// (described only by a base offset and a size, never dereferenced) and get
// back offsets, not pointers.
//
//	alloc, err := nvmalloc.Create(regionBase, regionSize)
//	if err != nil {
//	    // regionSize too small, or not a multiple of nvmalloc.SlabSize
//	}
//
//	off, err := alloc.Alloc(60) // rounds up to the 64-byte size class
//	if err != nil {
//	    // ErrSizeRejected or ErrOutOfSpace
//	}
//
//	alloc.Free(off)
//
// # Restore
//
// A higher layer that tracks which offsets are live across a restart can
// reconstruct this allocator's metadata without replaying every historical
// Alloc/Free call, by calling Restore once per live object:
//
//	err := alloc.Restore(off, size)
//
// Restore produces the same slab membership, free-list state and bitmap
// contents that the equivalent sequence of Alloc calls would have produced
// (the FIFO cache is the one exception: it starts empty and is populated
// only by future Free calls, never by Restore).
//
// # Size classes
//
// Requests are rounded up to the nearest of a fixed set of size classes
// (8B to 4096B). A request exceeding the largest size class is rejected;
// this allocator has no large-object path.
//
// # Concurrency
//
// Every exported method on *Allocator is safe to call concurrently from
// any number of goroutines. Internally this is achieved with a strict lock
// ordering (class-list lock, then segment-manager lock, then slab-index
// lock, then per-slab lock) rather than lock-free structures; see the
// internal/segment, internal/slab and internal/slabindex packages for the
// locking discipline each one owns.
//
// Two conditions are treated as unrecoverable programming errors and
// panic rather than returning an error: freeing an offset this allocator
// does not manage, and freeing (or coalescing) an already-free block or
// extent.
package nvmalloc
