// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nvmalloc

// SlabSize is the fixed size of every slab-sized extent carved out of the
// NVM region (spec.md §3, SLAB_SIZE).
const SlabSize uint64 = 2 * 1024 * 1024

// sizeClasses is the fixed table of block sizes this allocator serves
// (spec.md §3, SIZE_CLASSES). A request larger than the last entry is
// rejected.
var sizeClasses = [...]uint64{8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// MaxAllocSize is the largest size any call to Alloc or Restore can serve.
var MaxAllocSize = sizeClasses[len(sizeClasses)-1]

// sizeClassFor returns the smallest size class whose block size is at
// least size, or ok=false if size is zero or exceeds every size class.
func sizeClassFor(size uint64) (class int, ok bool) {
	if size == 0 {
		return 0, false
	}
	for i, blockSize := range sizeClasses {
		if size <= blockSize {
			return i, true
		}
	}
	return 0, false
}
