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

//go:build tamago && arm

// bootloader is a first stage bootloader for the USB armory Mk II which
// chooses between two images executing in place from memory.
//
// The flash window and footer addresses are set at link time:
//
//	-ldflags "-X main.FlashBase=0x80000000 -X main.FlashSize=0x100000 \
//	          -X main.SlotA=0x8007FFF8 -X main.SlotB=0x800FFFF8"
package main

import (
	"fmt"
	"log"
	"strconv"
	"unsafe"

	"github.com/google/firmware-switcher/crc24"
	"github.com/google/firmware-switcher/devices/armory"
	"github.com/google/firmware-switcher/memory"
	"github.com/google/firmware-switcher/switcher"
	usbarmory "github.com/usbarmory/tamago/board/usbarmory/mk2"
)

var (
	FlashBase string
	FlashSize string
	SlotA     string
	SlotB     string
)

var (
	region       *memory.Region
	slotA, slotB uint32
)

func mustParse(name, v string) uint32 {
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		panic(fmt.Sprintf("invalid %s %q, %v", name, v, err))
	}
	return uint32(n)
}

func init() {
	log.SetFlags(0)

	base := mustParse("FlashBase", FlashBase)
	size := mustParse("FlashSize", FlashSize)
	slotA = mustParse("SlotA", SlotA)
	slotB = mustParse("SlotB", SlotB)

	mem := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(base))), size)
	r, err := memory.New(base, mem)
	if err != nil {
		panic(fmt.Sprintf("invalid flash window, %v", err))
	}
	region = r
}

func main() {
	usbarmory.LED("blue", true)

	a, err := switcher.Open(region, slotA)
	if err != nil {
		panic(fmt.Sprintf("slot A: %v", err))
	}
	b, err := switcher.Open(region, slotB)
	if err != nil {
		panic(fmt.Sprintf("slot B: %v", err))
	}

	s := switcher.New(crc24.Default, armory.Jumper{})
	s.Boot(s.Select(a, b))

	log.Printf("switcher: no bootable image")
	usbarmory.LED("white", true)
	for {
	}
}
