// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Package fuzzutil turns a flat byte slice (as supplied by go test -fuzz or
// a seeded PRNG) into a sequence of allocator steps, adapted from the
// teacher repo's testpkg/fuzzutil byte-consumer pattern.
package fuzzutil

import "encoding/binary"

// ByteConsumer hands out fixed-size chunks of a byte slice, shrinking it as
// it goes, so callers can decode a deterministic sequence of decisions out
// of arbitrary fuzz input.
type ByteConsumer struct {
	bytes []byte
}

// NewByteConsumer wraps bytes for consumption.
func NewByteConsumer(bytes []byte) *ByteConsumer {
	return &ByteConsumer{bytes: bytes}
}

// Len returns the number of unconsumed bytes remaining.
func (c *ByteConsumer) Len() int {
	return len(c.bytes)
}

// Bytes consumes and returns size bytes, zero-padding if fewer remain.
func (c *ByteConsumer) Bytes(size int) []byte {
	consumed := make([]byte, size)
	copy(consumed, c.bytes)

	if len(c.bytes) <= size {
		c.bytes = c.bytes[:0]
	} else {
		c.bytes = c.bytes[size:]
	}
	return consumed
}

// Byte consumes a single byte.
func (c *ByteConsumer) Byte() byte {
	return c.Bytes(1)[0]
}

// Uint16 consumes two bytes as a little-endian uint16.
func (c *ByteConsumer) Uint16() uint16 {
	return binary.LittleEndian.Uint16(c.Bytes(2))
}

// Uint32 consumes four bytes as a little-endian uint32.
func (c *ByteConsumer) Uint32() uint32 {
	return binary.LittleEndian.Uint32(c.Bytes(4))
}
