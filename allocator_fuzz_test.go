// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nvmalloc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmstephe/nvmalloc/internal/fuzzutil"
)

// allocStep calls Alloc with a size derived from the fuzz input and
// records the resulting offset (if any) into live.
type allocStep struct {
	a    *Allocator
	size uint64
	live *[]uint64
}

func (s allocStep) DoStep() {
	off, err := s.a.Alloc(s.size)
	if err == nil {
		*s.live = append(*s.live, off)
	}
}

// freeStep frees one previously-live offset, chosen by index.
type freeStep struct {
	a     *Allocator
	index int
	live  *[]uint64
}

func (s freeStep) DoStep() {
	if len(*s.live) == 0 {
		return
	}
	i := s.index % len(*s.live)
	off := (*s.live)[i]
	*s.live = append((*s.live)[:i], (*s.live)[i+1:]...)
	s.a.Free(off)
}

// runRandomSequence decodes steps*2 bytes of random input into a sequence
// of Alloc/Free steps against a fresh Allocator, checking the region-wide
// at-rest invariant from spec.md §8 after the run.
func runRandomSequence(t *testing.T, seed int64, steps int) {
	t.Helper()

	a, err := Create(0, tenSlabRegion)
	require.NoError(t, err)
	defer a.Destroy()

	var live []uint64

	r := rand.New(rand.NewSource(seed))
	raw := make([]byte, steps*2)
	r.Read(raw)

	run := fuzzutil.NewTestRun(raw, func(c *fuzzutil.ByteConsumer) fuzzutil.Step {
		opByte := c.Byte()
		sizeByte := c.Byte()
		size := sizeClasses[int(sizeByte)%len(sizeClasses)]

		if opByte%3 == 0 {
			return freeStep{a: a, index: int(sizeByte), live: &live}
		}
		return allocStep{a: a, size: size, live: &live}
	}, func() {})

	run.Run()

	for _, off := range live {
		a.Free(off)
	}

	require.Equal(t, tenSlabRegion, a.FreeBytes()+SlabSize*uint64(a.slabCount.Load()))
	stats := a.Stats()
	require.Equal(t, stats.Allocs, stats.Frees)
}

func TestRandomAllocFreeSequences(t *testing.T) {
	for seed := int64(0); seed < 8; seed++ {
		seed := seed
		t.Run("", func(t *testing.T) {
			runRandomSequence(t, seed, 2000)
		})
	}
}
