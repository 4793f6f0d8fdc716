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

// Package switcher chooses which of several firmware images to boot, and
// boots it.
//
// An image is bootable when it has not been marked as failed and either has
// already booted successfully, or has a correct checksum and boot attempts
// left. Checksum results are cached in the image footer, so each image is
// checksummed at most once per flash.
//
// A first stage bootloader typically looks like:
//
//	s := switcher.New(crc24.Default, jumper)
//	s.Boot(s.Select(imageA, imageB))
//	// Nothing was bootable.
//	halt()
//
// Once booted, an image reports back through MarkSuccess, or a supervisor
// gives up on it through MarkFailure.
package switcher

import (
	"github.com/golang/glog"
)

// Checksummer computes the integrity code over an image and its embedded
// checksum. It must return zero for an intact image.
type Checksummer interface {
	Checksum(data []byte) uint32
}

// Preference reports whether a should be booted in preference to b when
// both are bootable.
type Preference func(a, b *Image) bool

// ByAddress prefers the image whose footer is at the higher address.
func ByAddress(a, b *Image) bool {
	return a.addr > b.addr
}

// ByVersion prefers the image with the higher version tag. Images with equal
// versions are equally preferred.
func ByVersion(a, b *Image) bool {
	return a.footer.Version() > b.footer.Version()
}

// Switcher selects and boots images.
type Switcher struct {
	sum    Checksummer
	jumper Jumper
	prefer Preference
	policy BudgetPolicy
}

// Option configures a Switcher.
type Option func(*Switcher)

// WithPreference sets how two bootable images are ranked. The default is
// ByAddress.
func WithPreference(p Preference) Option {
	return func(s *Switcher) {
		s.prefer = p
	}
}

// WithBudgetPolicy sets how Boot spends the attempt budget. The default is
// ShiftProven.
func WithBudgetPolicy(p BudgetPolicy) Option {
	return func(s *Switcher) {
		s.policy = p
	}
}

// New returns a Switcher which verifies images with sum and transfers
// control through j.
func New(sum Checksummer, j Jumper, opts ...Option) *Switcher {
	s := &Switcher{
		sum:    sum,
		jumper: j,
		prefer: ByAddress,
		policy: ShiftProven,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Bootable determines whether img can be booted.
//
// An image whose length does not fit in the region is never bootable, even
// if it has succeeded before.
//
// If the image has neither succeeded nor failed and has not been
// checksummed yet, its checksum is verified and the result recorded in the
// footer.
func (s *Switcher) Bootable(img *Image) bool {
	f := img.footer
	if f.Failed() {
		glog.V(2).Infof("%v: marked failed", img)
		return false
	}
	if _, ok := img.Start(); !ok {
		glog.V(1).Infof("%v: length %d runs off the start of the region", img, f.Length())
		return false
	}
	if f.Succeeded() {
		glog.V(2).Infof("%v: marked successful", img)
		return true
	}
	if f.Corrupt() {
		glog.V(2).Infof("%v: previously failed checksum", img)
		return false
	}
	if !f.Verified() {
		b, err := img.checksummed()
		if err != nil {
			glog.V(1).Infof("%v: %v", img, err)
			return false
		}
		if r := s.sum.Checksum(b); r != 0 {
			glog.V(1).Infof("%v: checksum remainder 0x%06x, marking invalid", img, r)
			f.SetCorrupt()
			return false
		}
		f.SetVerified()
	}
	if f.Attempts() == 0 {
		glog.V(2).Infof("%v: no boot attempts left", img)
		return false
	}
	return true
}

// Select returns the preferred bootable image of a and b, or nil if neither
// can be booted. If a and b are equally preferred, b is returned.
//
// Both images are always evaluated, so both footers have their checksum
// state recorded after the first call.
func (s *Switcher) Select(a, b *Image) *Image {
	okA, okB := s.Bootable(a), s.Bootable(b)
	switch {
	case okA && okB:
		if s.prefer(a, b) {
			return a
		}
		return b
	case okA:
		return a
	case okB:
		return b
	}
	return nil
}

// SelectN returns the most preferred bootable image, or nil if none can be
// booted. Of equally preferred images the last wins, as with Select.
func (s *Switcher) SelectN(images ...*Image) *Image {
	var best *Image
	for _, img := range images {
		if !s.Bootable(img) {
			continue
		}
		if best == nil || !s.prefer(best, img) {
			best = img
		}
	}
	return best
}
