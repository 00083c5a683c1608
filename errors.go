// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nvmalloc

import "errors"

// ErrSizeRejected is returned by Alloc and Restore when the requested size
// is zero or exceeds MaxAllocSize (spec.md §7, SizeRejected).
var ErrSizeRejected = errors.New("nvmalloc: requested size is zero or exceeds the largest size class")

// ErrOutOfSpace is returned by Alloc when the segment manager has no
// segment large enough to carve a new slab from (spec.md §7, OutOfSpace).
var ErrOutOfSpace = errors.New("nvmalloc: no free extent large enough for a new slab")

// ErrRestoreConflict is returned by Restore when the restored offset
// collides with an already-allocated block, the size class mismatches an
// existing slab at that base offset, or the extent is not available in the
// free list (spec.md §7, RestoreConflict).
var ErrRestoreConflict = errors.New("nvmalloc: restore conflicts with existing allocator state")
