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

// Package crc24 implements the 24-bit CRC used to protect bootable images.
//
// The CRC is computed MSB first with a zero initial value and no final XOR.
// Because the checksum is stored big-endian directly after the image it
// covers, running the image and its checksum through the CRC as one block
// yields zero for an intact image.
package crc24

// Polynomial is a CRC-24 generator polynomial in normal representation,
// without the implicit x^24 term.
type Polynomial uint32

// Default is the polynomial used for image footers.
const Default Polynomial = 0x5D6DCB

// Checksum returns the remainder of data divided by p.
//
// This is the value the switcher expects to be zero when data is an image
// followed by its embedded checksum.
func (p Polynomial) Checksum(data []byte) uint32 {
	var r uint32
	for _, b := range data {
		// The remainder lives in the top three bytes of r, the low byte
		// holds the next message byte.
		r |= uint32(b)
		for i := 0; i < 8; i++ {
			carry := r&(1<<31) != 0
			r <<= 1
			if carry {
				r ^= uint32(p) << 8
			}
		}
	}
	return r >> 8
}

// Calculate returns the checksum to embed after data.
func (p Polynomial) Calculate(data []byte) uint32 {
	r := p.Checksum(data)
	// Equivalent to appending three zero bytes to data.
	for i := 0; i < 24; i++ {
		carry := r&(1<<23) != 0
		r = (r << 1) & 0xFFFFFF
		if carry {
			r ^= uint32(p)
		}
	}
	return r
}

// Valid reports whether data ends with a correct checksum for the bytes
// before it.
func (p Polynomial) Valid(data []byte) bool {
	return p.Checksum(data) == 0
}

// Checksum returns Default.Checksum(data).
func Checksum(data []byte) uint32 {
	return Default.Checksum(data)
}

// Calculate returns Default.Calculate(data).
func Calculate(data []byte) uint32 {
	return Default.Calculate(data)
}

// Valid returns Default.Valid(data).
func Valid(data []byte) bool {
	return Default.Valid(data)
}
