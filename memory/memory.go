// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memory provides an addressable view over a contiguous block of
// device memory, such as a flash part mapped at a fixed base address.
package memory

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when an address range is not fully contained in
// a Region.
var ErrOutOfRange = errors.New("address range outside region")

// Region is a contiguous range of memory starting at Base.
//
// Slices handed out by a Region alias its backing storage: writes through
// them are visible to every other view of the same bytes.
type Region struct {
	base uint32
	mem  []byte
}

// New returns a Region over mem, with the first byte of mem at address base.
func New(base uint32, mem []byte) (*Region, error) {
	if uint64(base)+uint64(len(mem)) > 1<<32 {
		return nil, fmt.Errorf("region [0x%08x, +0x%x) overflows the 32-bit address space", base, len(mem))
	}
	return &Region{base: base, mem: mem}, nil
}

// Base returns the address of the first byte of the region.
func (r *Region) Base() uint32 {
	return r.base
}

// End returns the address one past the last byte of the region.
func (r *Region) End() uint64 {
	return uint64(r.base) + uint64(len(r.mem))
}

// Bytes returns the whole backing storage.
func (r *Region) Bytes() []byte {
	return r.mem
}

// Contains reports whether [addr, addr+n) lies within the region.
func (r *Region) Contains(addr uint32, n uint64) bool {
	return addr >= r.base && uint64(addr)+n <= r.End()
}

// Slice returns the n bytes starting at addr, without copying.
func (r *Region) Slice(addr uint32, n uint64) ([]byte, error) {
	if !r.Contains(addr, n) {
		return nil, fmt.Errorf("[0x%08x, +0x%x) in [0x%08x, 0x%08x): %w", addr, n, r.base, r.End(), ErrOutOfRange)
	}
	off := uint64(addr - r.base)
	return r.mem[off : off+n : off+n], nil
}

// Write copies b into the region starting at addr.
func (r *Region) Write(addr uint32, b []byte) error {
	dst, err := r.Slice(addr, uint64(len(b)))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}
