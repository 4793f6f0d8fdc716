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

package switcher

import (
	"fmt"

	"github.com/google/firmware-switcher/footer"
	"github.com/google/firmware-switcher/memory"
)

// Image is a bootable image, identified by the address of its footer.
//
// The image bytes are [addr-length, addr), the footer is [addr, addr+footer.Size).
type Image struct {
	addr   uint32
	region *memory.Region
	footer footer.Footer
}

// Open returns the Image whose footer lives at addr in r.
//
// No validation of the footer contents is performed here; a footer
// describing bytes outside r simply never becomes bootable.
func Open(r *memory.Region, addr uint32) (*Image, error) {
	b, err := r.Slice(addr, footer.Size)
	if err != nil {
		return nil, fmt.Errorf("footer at 0x%08x: %w", addr, err)
	}
	f, err := footer.View(b)
	if err != nil {
		return nil, err
	}
	return &Image{addr: addr, region: r, footer: f}, nil
}

// Addr returns the address of the image footer.
func (i *Image) Addr() uint32 {
	return i.addr
}

// Footer returns a view of the image footer.
func (i *Image) Footer() footer.Footer {
	return i.footer
}

// Start returns the address of the first byte of the image. It returns false
// if the footer claims a length larger than the space before it.
func (i *Image) Start() (uint32, bool) {
	l := i.footer.Length()
	if l > i.addr || i.addr-l < i.region.Base() {
		return 0, false
	}
	return i.addr - l, true
}

// Bytes returns the image bytes, without the footer.
func (i *Image) Bytes() ([]byte, error) {
	start, ok := i.Start()
	if !ok {
		return nil, fmt.Errorf("image@0x%08x: length %d runs off the start of the region", i.addr, i.footer.Length())
	}
	return i.region.Slice(start, uint64(i.footer.Length()))
}

// checksummed returns the image bytes followed by the embedded checksum.
func (i *Image) checksummed() ([]byte, error) {
	start, ok := i.Start()
	if !ok {
		return nil, fmt.Errorf("image@0x%08x: length %d runs off the start of the region", i.addr, i.footer.Length())
	}
	return i.region.Slice(start, uint64(i.footer.Length())+footer.ChecksumSize)
}

func (i *Image) String() string {
	return fmt.Sprintf("image@0x%08x", i.addr)
}
