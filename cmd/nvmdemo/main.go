// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/fmstephe/nvmalloc"
	"github.com/fmstephe/nvmalloc/internal/nvmregion"
)

var (
	regionSlabsFlag = flag.Uint64("slabs", 8, "number of SlabSize-sized slabs to simulate as the NVM region")
	allocSizeFlag   = flag.Uint64("size", 64, "size in bytes of each demo allocation")
	countFlag       = flag.Uint64("count", 4, "number of demo allocations to make")
)

func main() {
	flag.Parse()

	regionSize := *regionSlabsFlag * nvmalloc.SlabSize
	region, err := nvmregion.New(regionSize)
	if err != nil {
		log.Fatalf("failed to simulate NVM region: %s", err)
	}
	defer region.Close()

	alloc, err := nvmalloc.Create(0, regionSize)
	if err != nil {
		log.Fatalf("failed to create allocator: %s", err)
	}
	defer alloc.Destroy()

	offsets := make([]uint64, 0, *countFlag)
	for i := uint64(0); i < *countFlag; i++ {
		off, err := alloc.Alloc(*allocSizeFlag)
		if err != nil {
			log.Fatalf("alloc #%d failed: %s", i, err)
		}
		offsets = append(offsets, off)
		fmt.Printf("alloc(%d) -> offset %d\n", *allocSizeFlag, off)
	}

	stats := alloc.Stats()
	fmt.Printf("stats: %+v\n", stats)

	for _, off := range offsets {
		alloc.Free(off)
	}
	fmt.Printf("freed %d allocations, free bytes now %d of %d\n", len(offsets), alloc.FreeBytes(), regionSize)
}
