// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocFillsLowestIndexFirst(t *testing.T) {
	s := Create(0, 64, 1<<16, 0)

	for i := uint64(0); i < s.TotalBlocks(); i++ {
		idx, err := s.Alloc()
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}

	_, err := s.Alloc()
	assert.ErrorIs(t, err, ErrFull)
	assert.True(t, s.IsFull())
	require.NoError(t, s.CheckInvariants())
}

func TestFreeThenAllocHitsCacheFIFO(t *testing.T) {
	s := Create(0, 64, 1<<16, 0)

	a, err := s.Alloc()
	require.NoError(t, err)
	b, err := s.Alloc()
	require.NoError(t, err)

	s.Free(a)
	s.Free(b)

	// FIFO: a was freed first, so it comes back first.
	got, err := s.Alloc()
	require.NoError(t, err)
	assert.Equal(t, a, got)

	got, err = s.Alloc()
	require.NoError(t, err)
	assert.Equal(t, b, got)

	require.NoError(t, s.CheckInvariants())
}

func TestDoubleFreePanics(t *testing.T) {
	s := Create(0, 64, 1<<16, 0)
	idx, err := s.Alloc()
	require.NoError(t, err)

	s.Free(idx)
	assert.Panics(t, func() {
		s.Free(idx)
	})
}

func TestCacheOverflowFallsBackToBitmap(t *testing.T) {
	s := Create(0, 8, 1<<20, 0) // plenty of blocks

	allocated := make([]uint64, CacheCapacity+8)
	for i := range allocated {
		idx, err := s.Alloc()
		require.NoError(t, err)
		allocated[i] = idx
	}

	for _, idx := range allocated {
		s.Free(idx)
	}

	require.NoError(t, s.CheckInvariants())
	assert.True(t, s.IsEmpty())
}

func TestRestoreOnEmptySlab(t *testing.T) {
	s := Create(0, 64, 1<<16, 2<<21)

	last := s.TotalBlocks() - 1
	require.NoError(t, s.Restore(last))

	assert.Equal(t, uint64(1), s.AllocatedCount())
	require.NoError(t, s.CheckInvariants())
}

func TestRestoreConflict(t *testing.T) {
	s := Create(0, 64, 1<<16, 0)
	require.NoError(t, s.Restore(5))

	err := s.Restore(5)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRestoreDoesNotConsultCache(t *testing.T) {
	s := Create(0, 64, 1<<16, 0)
	idx, err := s.Alloc()
	require.NoError(t, err)
	s.Free(idx) // idx is now in the cache, bitmap clear

	// Restoring the same index must succeed by going straight to the bitmap.
	require.NoError(t, s.Restore(idx))
	require.NoError(t, s.CheckInvariants())
}

func TestRestoreEvictsStaleCacheEntry(t *testing.T) {
	s := Create(0, 64, 1<<16, 0)
	idx, err := s.Alloc()
	require.NoError(t, err)
	s.Free(idx) // idx now sits in the FIFO cache with bitmap clear

	require.NoError(t, s.Restore(idx))
	require.NoError(t, s.CheckInvariants())

	// Alloc must not hand idx back out a second time via the stale cache
	// entry; it is already restored-allocated.
	other, err := s.Alloc()
	require.NoError(t, err)
	assert.NotEqual(t, idx, other)
	require.NoError(t, s.CheckInvariants())
}

func TestIsEmptyIsFull(t *testing.T) {
	s := Create(0, 1<<14, 1<<16, 0) // 4 blocks
	assert.True(t, s.IsEmpty())
	assert.False(t, s.IsFull())

	idxs := make([]uint64, 0, 4)
	for i := 0; i < 4; i++ {
		idx, err := s.Alloc()
		require.NoError(t, err)
		idxs = append(idxs, idx)
	}
	assert.True(t, s.IsFull())
	assert.False(t, s.IsEmpty())

	for _, idx := range idxs {
		s.Free(idx)
	}
	assert.True(t, s.IsEmpty())
}
