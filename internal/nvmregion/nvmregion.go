// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Package nvmregion simulates the byte-addressable NVM range the allocator
// core manages offsets into. It is adapted from the teacher repo's
// offheap/internal/pointerstore mmap helpers: the allocator core never
// imports this package and never touches the bytes it provisions (spec.md
// §1, §5) — it exists only so the demo command has a real address range
// to stand in for the NVM mapping.
package nvmregion

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Region is an anonymous-mmap-backed byte range standing in for a real NVM
// mapping.
type Region struct {
	data []byte
}

// New maps size bytes of anonymous memory and returns a Region wrapping it.
func New(size uint64) (*Region, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("nvmregion: cannot map %d bytes: %w", size, err)
	}
	return &Region{data: data}, nil
}

// Close unmaps the region. The Region must not be used again afterwards.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}

// Bytes returns the region's backing slice, for callers that want to write
// through an offset returned by the allocator (e.g. offset 0 writes to
// Bytes()[0:]). The allocator core itself never calls this.
func (r *Region) Bytes() []byte {
	return r.data
}

// Size returns the region's size in bytes.
func (r *Region) Size() uint64 {
	return uint64(len(r.data))
}
