// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slabindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmstephe/nvmalloc/internal/slab"
)

const testSlabSize = 1 << 16

func TestInsertLookupRemove(t *testing.T) {
	x := New(DefaultCapacity, testSlabSize)

	s := slab.Create(0, 64, testSlabSize, testSlabSize*3)
	require.NoError(t, x.Insert(testSlabSize*3, s))

	assert.Same(t, s, x.Lookup(testSlabSize*3))
	assert.Nil(t, x.Lookup(testSlabSize*4))

	assert.Same(t, s, x.Remove(testSlabSize*3))
	assert.Nil(t, x.Lookup(testSlabSize*3))
	assert.Nil(t, x.Remove(testSlabSize*3))
}

func TestInsertDuplicateKeyFails(t *testing.T) {
	x := New(DefaultCapacity, testSlabSize)

	s1 := slab.Create(0, 64, testSlabSize, 0)
	s2 := slab.Create(0, 64, testSlabSize, 0)

	require.NoError(t, x.Insert(0, s1))
	assert.Error(t, x.Insert(0, s2))
}

func TestConsecutiveSlabsDistributeAcrossBuckets(t *testing.T) {
	x := New(DefaultCapacity, testSlabSize)

	for i := uint64(0); i < 10; i++ {
		s := slab.Create(0, 64, testSlabSize, i*testSlabSize)
		require.NoError(t, x.Insert(i*testSlabSize, s))
	}

	require.NoError(t, x.CheckInvariants())
	assert.Equal(t, 10, x.Count())

	// Each of the ten consecutive slabs sits alone in its own bucket.
	for i := uint64(0); i < 10; i++ {
		e := x.buckets[x.bucket(i*testSlabSize)]
		require.NotNil(t, e)
		assert.Nil(t, e.next)
	}
}
