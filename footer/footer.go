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

// Package footer describes the fixed-layout record which trails every
// bootable image.
//
// The footer sits immediately after the image it describes, checksum first,
// so the image and its checksum can be run through the CRC as one block:
//
//	byte 0..2  checksum, big-endian
//	byte 3     version
//	byte 4..6  length of the image in bytes, little-endian
//	byte 7     bit 0 nValid, bit 1 nInvalid, bit 2 nSuccess, bit 3 nFailure,
//	           bits 4..7 remaining boot attempts
//
// Flag bits are active-low: erased flash reads as all ones, so a freshly
// flashed footer has every flag unset and a full attempt budget without a
// separate write pass. Callers only ever see the translated State.
package footer

import "fmt"

const (
	// Size is the number of bytes occupied by a footer.
	Size = 8
	// ChecksumSize is the number of leading footer bytes covered by the
	// image checksum.
	ChecksumSize = 3
	// MaxLength is the largest image length a footer can describe.
	MaxLength = 1<<24 - 1
	// MaxAttempts is the attempt budget of a freshly flashed image.
	MaxAttempts = 0xF
)

const flagsOffset = 7

// flag is a single active-low bit in the flags byte.
type flag uint8

const (
	flagValid flag = 1 << iota
	flagInvalid
	flagSuccess
	flagFailure
)

const (
	attemptsShift = 4
	attemptsMask  = 0xF0
)

// State is the logical value of a footer flag.
type State int

const (
	// Unset means the flag has never been written since the image was flashed.
	Unset State = iota
	// Asserted means the flag bit has been cleared.
	Asserted
)

func (s State) String() string {
	switch s {
	case Unset:
		return "unset"
	case Asserted:
		return "asserted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Footer is a view over the Size bytes of an image footer.
//
// A Footer never owns its bytes: every setter writes through to the slice it
// was created from.
type Footer struct {
	b []byte
}

// View returns a Footer over the first Size bytes of b.
func View(b []byte) (Footer, error) {
	if len(b) < Size {
		return Footer{}, fmt.Errorf("footer needs %d bytes, got %d", Size, len(b))
	}
	return Footer{b: b[:Size:Size]}, nil
}

// New returns the bytes of a freshly flashed footer.
func New(checksum uint32, version uint8, length uint32) ([]byte, error) {
	if checksum > 0xFFFFFF {
		return nil, fmt.Errorf("checksum 0x%x does not fit in 24 bits", checksum)
	}
	if length > MaxLength {
		return nil, fmt.Errorf("image length %d exceeds %d", length, MaxLength)
	}
	return []byte{
		byte(checksum >> 16), byte(checksum >> 8), byte(checksum),
		version,
		byte(length), byte(length >> 8), byte(length >> 16),
		0xFF,
	}, nil
}

// Bytes returns the underlying footer bytes.
func (f Footer) Bytes() []byte {
	return f.b
}

// Checksum returns the checksum embedded when the image was flashed.
func (f Footer) Checksum() uint32 {
	return uint32(f.b[0])<<16 | uint32(f.b[1])<<8 | uint32(f.b[2])
}

// Version returns the image version tag.
func (f Footer) Version() uint8 {
	return f.b[3]
}

// Length returns the length of the image preceding the footer.
func (f Footer) Length() uint32 {
	return uint32(f.b[4]) | uint32(f.b[5])<<8 | uint32(f.b[6])<<16
}

func (f Footer) state(fl flag) State {
	if f.b[flagsOffset]&byte(fl) == 0 {
		return Asserted
	}
	return Unset
}

func (f Footer) assert(fl flag) {
	f.b[flagsOffset] &^= byte(fl)
}

// Valid returns the state of the "checksum verified" flag.
func (f Footer) Valid() State { return f.state(flagValid) }

// Invalid returns the state of the "checksum failed" flag.
func (f Footer) Invalid() State { return f.state(flagInvalid) }

// Success returns the state of the "booted successfully" flag.
func (f Footer) Success() State { return f.state(flagSuccess) }

// Failure returns the state of the "permanently failed" flag.
func (f Footer) Failure() State { return f.state(flagFailure) }

// Verified reports whether the image checksum has been verified.
func (f Footer) Verified() bool { return f.Valid() == Asserted }

// Corrupt reports whether the image previously failed checksum verification.
func (f Footer) Corrupt() bool { return f.Invalid() == Asserted }

// Succeeded reports whether the image has been marked as booted successfully.
func (f Footer) Succeeded() bool { return f.Success() == Asserted }

// Failed reports whether the image has been marked as failed.
func (f Footer) Failed() bool { return f.Failure() == Asserted }

// SetVerified records that the checksum was verified.
func (f Footer) SetVerified() { f.assert(flagValid) }

// SetCorrupt records that the checksum verification failed.
func (f Footer) SetCorrupt() { f.assert(flagInvalid) }

// SetSucceeded records a successful boot.
func (f Footer) SetSucceeded() { f.assert(flagSuccess) }

// SetFailed permanently disqualifies the image.
func (f Footer) SetFailed() { f.assert(flagFailure) }

// Attempts returns the remaining attempt budget.
func (f Footer) Attempts() uint8 {
	return f.b[flagsOffset] >> attemptsShift
}

// SetAttempts stores the low four bits of n as the attempt budget.
func (f Footer) SetAttempts(n uint8) {
	f.b[flagsOffset] = f.b[flagsOffset]&^attemptsMask | (n<<attemptsShift)&attemptsMask
}

func (f Footer) String() string {
	return fmt.Sprintf("{version: %d, length: %d, checksum: 0x%06x, valid: %v, invalid: %v, success: %v, failure: %v, attempts: 0b%04b}",
		f.Version(), f.Length(), f.Checksum(), f.Valid(), f.Invalid(), f.Success(), f.Failure(), f.Attempts())
}
