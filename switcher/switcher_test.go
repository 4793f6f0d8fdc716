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

package switcher_test

//go:generate mockgen -write_package_comment=false -self_package github.com/google/firmware-switcher/switcher_test -package switcher_test -destination mock_checksummer_test.go github.com/google/firmware-switcher/switcher Checksummer

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/firmware-switcher/crc24"
	"github.com/google/firmware-switcher/footer"
	"github.com/google/firmware-switcher/memory"
	"github.com/google/firmware-switcher/switcher"
	"github.com/google/go-cmp/cmp"
)

const (
	regionBase = 0x1000
	regionSize = 0x100
	slotA      = 0x1070
	slotB      = 0x10F0
)

var (
	imageA = []byte("first image, v1")
	imageB = []byte("second image, v2")
)

func newRegion(t *testing.T) *memory.Region {
	t.Helper()
	mem := make([]byte, regionSize)
	for i := range mem {
		mem[i] = 0xFF
	}
	r, err := memory.New(regionBase, mem)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	return r
}

// flash writes img and a fresh footer so that the footer lands at addr.
func flash(t *testing.T, r *memory.Region, addr uint32, img []byte, version uint8) *switcher.Image {
	t.Helper()
	if err := r.Write(addr-uint32(len(img)), img); err != nil {
		t.Fatalf("writing image: %v", err)
	}
	f, err := footer.New(crc24.Calculate(img), version, uint32(len(img)))
	if err != nil {
		t.Fatalf("footer.New: %v", err)
	}
	if err := r.Write(addr, f); err != nil {
		t.Fatalf("writing footer: %v", err)
	}
	i, err := switcher.Open(r, addr)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return i
}

var errJumped = errors.New("jumped")

// fakeJumper records the targets it was asked to jump to, along with the
// attempt budget as it was at the time of the jump.
type fakeJumper struct {
	targets  []switcher.Target
	attempts []uint8
}

func (j *fakeJumper) Jump(t switcher.Target) {
	j.targets = append(j.targets, t)
	j.attempts = append(j.attempts, t.Image.Footer().Attempts())
	panic(errJumped)
}

// boot calls s.Boot and reports whether control was transferred.
func boot(s *switcher.Switcher, img *switcher.Image) (jumped bool) {
	defer func() {
		if r := recover(); r != nil {
			if r != errJumped {
				panic(r)
			}
			jumped = true
		}
	}()
	s.Boot(img)
	return false
}

func TestBootable(t *testing.T) {
	for _, test := range []struct {
		desc    string
		setup   func(f footer.Footer, mem []byte)
		want    bool
		wantSum int
	}{
		{
			desc:    "fresh image",
			want:    true,
			wantSum: 1,
		}, {
			desc:  "failed",
			setup: func(f footer.Footer, _ []byte) { f.SetFailed() },
		}, {
			desc: "failed beats succeeded",
			setup: func(f footer.Footer, _ []byte) {
				f.SetSucceeded()
				f.SetVerified()
				f.SetFailed()
			},
		}, {
			desc:  "succeeded",
			setup: func(f footer.Footer, _ []byte) { f.SetSucceeded() },
			want:  true,
		}, {
			desc: "succeeded with corrupt bytes",
			setup: func(f footer.Footer, mem []byte) {
				f.SetSucceeded()
				mem[0] ^= 0xFF
			},
			want: true,
		}, {
			desc: "succeeded with no attempts",
			setup: func(f footer.Footer, _ []byte) {
				f.SetSucceeded()
				f.SetAttempts(0)
			},
			want: true,
		}, {
			desc:  "previously corrupt",
			setup: func(f footer.Footer, _ []byte) { f.SetCorrupt() },
		}, {
			desc:  "previously verified",
			setup: func(f footer.Footer, _ []byte) { f.SetVerified() },
			want:  true,
		}, {
			desc: "verified with no attempts",
			setup: func(f footer.Footer, _ []byte) {
				f.SetVerified()
				f.SetAttempts(0)
			},
		}, {
			desc:    "unverified with no attempts",
			setup:   func(f footer.Footer, _ []byte) { f.SetAttempts(0) },
			wantSum: 1,
		}, {
			desc:    "bad checksum",
			setup:   func(_ footer.Footer, mem []byte) { mem[3] ^= 0x01 },
			wantSum: 1,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			r := newRegion(t)
			img := flash(t, r, slotA, imageA, 1)
			if test.setup != nil {
				mem, err := img.Bytes()
				if err != nil {
					t.Fatalf("Bytes: %v", err)
				}
				test.setup(img.Footer(), mem)
			}

			sum := NewMockChecksummer(ctrl)
			sum.EXPECT().Checksum(gomock.Any()).DoAndReturn(crc24.Checksum).Times(test.wantSum)
			s := switcher.New(sum, &fakeJumper{})

			if got := s.Bootable(img); got != test.want {
				t.Errorf("Bootable: got %v, want %v (footer %v)", got, test.want, img.Footer())
			}
		})
	}
}

func TestBootableChecksumsOnce(t *testing.T) {
	for _, test := range []struct {
		desc          string
		remainder     uint32
		want          bool
		wantVerified  bool
		wantCorrupted bool
	}{
		{
			desc:         "good",
			remainder:    0,
			want:         true,
			wantVerified: true,
		}, {
			desc:          "bad",
			remainder:     0x123456,
			want:          false,
			wantCorrupted: true,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			r := newRegion(t)
			img := flash(t, r, slotA, imageA, 1)

			sum := NewMockChecksummer(ctrl)
			sum.EXPECT().Checksum(gomock.Any()).Return(test.remainder).Times(1)
			s := switcher.New(sum, &fakeJumper{})

			for i := 0; i < 3; i++ {
				if got := s.Bootable(img); got != test.want {
					t.Errorf("Bootable #%d: got %v, want %v", i, got, test.want)
				}
			}
			f := img.Footer()
			if got := f.Verified(); got != test.wantVerified {
				t.Errorf("Verified: got %v, want %v", got, test.wantVerified)
			}
			if got := f.Corrupt(); got != test.wantCorrupted {
				t.Errorf("Corrupt: got %v, want %v", got, test.wantCorrupted)
			}
		})
	}
}

func TestBootableChecksumCoversImageAndChecksum(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := newRegion(t)
	img := flash(t, r, slotA, imageA, 1)
	c := crc24.Calculate(imageA)
	want := append(append([]byte{}, imageA...), byte(c>>16), byte(c>>8), byte(c))

	sum := NewMockChecksummer(ctrl)
	sum.EXPECT().Checksum(gomock.Eq(want)).Return(uint32(0))
	s := switcher.New(sum, &fakeJumper{})
	if !s.Bootable(img) {
		t.Error("Bootable: got false, want true")
	}
}

func TestCorruptionIsPinned(t *testing.T) {
	r := newRegion(t)
	img := flash(t, r, slotA, imageA, 1)
	mem, err := img.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	s := switcher.New(crc24.Default, &fakeJumper{})

	mem[0] ^= 0xFF
	if s.Bootable(img) {
		t.Fatal("Bootable with corrupt bytes: got true, want false")
	}
	// Repairing the bytes does not bring the image back.
	mem[0] ^= 0xFF
	if s.Bootable(img) {
		t.Error("Bootable after repair: got true, want false")
	}
}

// flashOverlong writes a footer at addr whose length reaches one byte past
// the start of the region.
func flashOverlong(t *testing.T, r *memory.Region, addr uint32) *switcher.Image {
	t.Helper()
	f, err := footer.New(0, 1, addr-regionBase+1)
	if err != nil {
		t.Fatalf("footer.New: %v", err)
	}
	if err := r.Write(addr, f); err != nil {
		t.Fatalf("Write: %v", err)
	}
	img, err := switcher.Open(r, addr)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return img
}

func TestBootableLengthOutOfRange(t *testing.T) {
	for _, test := range []struct {
		desc  string
		setup func(f footer.Footer)
	}{
		{
			desc: "unverified",
		}, {
			desc:  "verified",
			setup: func(f footer.Footer) { f.SetVerified() },
		}, {
			desc:  "succeeded",
			setup: func(f footer.Footer) { f.SetSucceeded() },
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			r := newRegion(t)
			img := flashOverlong(t, r, slotA)
			if test.setup != nil {
				test.setup(img.Footer())
			}
			before := img.Footer().String()

			sum := NewMockChecksummer(ctrl)
			sum.EXPECT().Checksum(gomock.Any()).Times(0)
			s := switcher.New(sum, &fakeJumper{})
			if s.Bootable(img) {
				t.Error("Bootable: got true, want false")
			}
			if diff := cmp.Diff(before, img.Footer().String()); diff != "" {
				t.Errorf("footer changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSucceededOverlongImageFallsBack(t *testing.T) {
	r := newRegion(t)
	a := flash(t, r, slotA, imageA, 1)
	b := flashOverlong(t, r, slotB)
	switcher.MarkSuccess(b)

	j := &fakeJumper{}
	s := switcher.New(crc24.Default, j)
	got := s.Select(a, b)
	if got != a {
		t.Fatalf("Select: got %v, want %v", got, a)
	}
	if !boot(s, got) {
		t.Fatal("Boot returned without jumping")
	}
	if got := j.targets[0].Image; got != a {
		t.Errorf("jumped to %v, want %v", got, a)
	}

	switcher.MarkFailure(a)
	if got := s.Select(a, b); got != nil {
		t.Errorf("Select with only the overlong image left: got %v, want nil", got)
	}
}

func TestOpenOutOfRange(t *testing.T) {
	r := newRegion(t)
	if _, err := switcher.Open(r, regionBase+regionSize-footer.Size+1); !errors.Is(err, memory.ErrOutOfRange) {
		t.Errorf("Open: got %v, want ErrOutOfRange", err)
	}
}

func TestSelect(t *testing.T) {
	for _, test := range []struct {
		desc    string
		breakA  bool
		breakB  bool
		swap    bool
		opts    []switcher.Option
		verA    uint8
		verB    uint8
		want    uint32
		wantNil bool
	}{
		{
			desc: "both bootable",
			verA: 1,
			verB: 2,
			want: slotB,
		}, {
			desc: "both bootable, arguments swapped",
			swap: true,
			verA: 1,
			verB: 2,
			want: slotB,
		}, {
			desc: "address beats version",
			verA: 7,
			verB: 2,
			want: slotB,
		}, {
			desc: "by version",
			opts: []switcher.Option{switcher.WithPreference(switcher.ByVersion)},
			verA: 7,
			verB: 2,
			want: slotA,
		}, {
			desc: "equal versions favour second argument",
			opts: []switcher.Option{switcher.WithPreference(switcher.ByVersion)},
			verA: 3,
			verB: 3,
			want: slotB,
		}, {
			desc: "equal versions favour second argument, arguments swapped",
			opts: []switcher.Option{switcher.WithPreference(switcher.ByVersion)},
			swap: true,
			verA: 3,
			verB: 3,
			want: slotA,
		}, {
			desc:   "only A",
			breakB: true,
			want:   slotA,
		}, {
			desc:   "only B",
			breakA: true,
			want:   slotB,
		}, {
			desc:    "neither",
			breakA:  true,
			breakB:  true,
			wantNil: true,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			r := newRegion(t)
			a := flash(t, r, slotA, imageA, test.verA)
			b := flash(t, r, slotB, imageB, test.verB)
			if test.breakA {
				switcher.MarkFailure(a)
			}
			if test.breakB {
				switcher.MarkFailure(b)
			}
			before := append([]byte{}, r.Bytes()...)

			s := switcher.New(crc24.Default, &fakeJumper{}, test.opts...)
			var got *switcher.Image
			if test.swap {
				got = s.Select(b, a)
			} else {
				got = s.Select(a, b)
			}

			switch {
			case test.wantNil && got != nil:
				t.Fatalf("Select: got %v, want nil", got)
			case test.wantNil:
			case got == nil:
				t.Fatalf("Select: got nil, want image@0x%08x", test.want)
			case got.Addr() != test.want:
				t.Errorf("Select: got %v, want image@0x%08x", got, test.want)
			}

			// The only changes allowed are the cached checksum results.
			for _, img := range []*switcher.Image{a, b} {
				off := img.Addr() - regionBase + footer.Size - 1
				mask := byte(0x03)
				if diff := cmp.Diff(before[off]&^mask, r.Bytes()[off]&^mask); diff != "" {
					t.Errorf("%v flags changed beyond checksum cache (-want +got):\n%s", img, diff)
				}
				before[off], r.Bytes()[off] = 0, 0
			}
			if diff := cmp.Diff(before, r.Bytes()); diff != "" {
				t.Errorf("Select modified memory (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectN(t *testing.T) {
	r := newRegion(t)
	a := flash(t, r, slotA, imageA, 3)
	b := flash(t, r, slotB, imageB, 1)
	c := flash(t, r, 0x1030, []byte("third"), 2)

	s := switcher.New(crc24.Default, &fakeJumper{})
	if got := s.SelectN(c, a, b); got != b {
		t.Errorf("SelectN by address: got %v, want %v", got, b)
	}

	s = switcher.New(crc24.Default, &fakeJumper{}, switcher.WithPreference(switcher.ByVersion))
	if got := s.SelectN(c, a, b); got != a {
		t.Errorf("SelectN by version: got %v, want %v", got, a)
	}

	switcher.MarkFailure(a)
	if got := s.SelectN(c, a, b); got != c {
		t.Errorf("SelectN without a: got %v, want %v", got, c)
	}

	switcher.MarkFailure(b)
	switcher.MarkFailure(c)
	if got := s.SelectN(c, a, b); got != nil {
		t.Errorf("SelectN with everything failed: got %v, want nil", got)
	}
	if got := s.SelectN(); got != nil {
		t.Errorf("SelectN(): got %v, want nil", got)
	}
}

func TestBootNil(t *testing.T) {
	r := newRegion(t)
	flash(t, r, slotA, imageA, 1)
	before := append([]byte{}, r.Bytes()...)

	j := &fakeJumper{}
	s := switcher.New(crc24.Default, j)
	if boot(s, nil) {
		t.Fatal("Boot(nil) transferred control")
	}
	if len(j.targets) != 0 {
		t.Errorf("Boot(nil) jumped to %v", j.targets)
	}
	if diff := cmp.Diff(before, r.Bytes()); diff != "" {
		t.Errorf("Boot(nil) modified memory (-want +got):\n%s", diff)
	}
}

func TestBoot(t *testing.T) {
	for _, test := range []struct {
		desc         string
		policy       switcher.BudgetPolicy
		succeeded    bool
		attempts     uint8
		wantAttempts uint8
	}{
		{
			desc:         "proven image spends budget",
			policy:       switcher.ShiftProven,
			succeeded:    true,
			attempts:     0b0010,
			wantAttempts: 0b0100,
		}, {
			desc:         "proven image budget truncated",
			policy:       switcher.ShiftProven,
			succeeded:    true,
			attempts:     0b1010,
			wantAttempts: 0b0100,
		}, {
			desc:         "unproven image keeps budget",
			policy:       switcher.ShiftProven,
			attempts:     0b1111,
			wantAttempts: 0b1111,
		}, {
			desc:         "unproven image spends budget",
			policy:       switcher.ShiftUnproven,
			attempts:     0b1111,
			wantAttempts: 0b1110,
		}, {
			desc:         "proven image keeps budget",
			policy:       switcher.ShiftUnproven,
			succeeded:    true,
			attempts:     0b0010,
			wantAttempts: 0b0010,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			r := newRegion(t)
			img := flash(t, r, slotA, imageA, 1)
			f := img.Footer()
			f.SetAttempts(test.attempts)
			if test.succeeded {
				f.SetSucceeded()
			}

			j := &fakeJumper{}
			s := switcher.New(crc24.Default, j, switcher.WithBudgetPolicy(test.policy))
			if !boot(s, img) {
				t.Fatal("Boot returned")
			}
			if len(j.targets) != 1 {
				t.Fatalf("got %d jumps, want 1", len(j.targets))
			}
			if got := j.attempts[0]; got != test.wantAttempts {
				t.Errorf("attempts at jump: got 0b%04b, want 0b%04b", got, test.wantAttempts)
			}
			got := j.targets[0]
			if want := uint32(slotA - len(imageA)); got.Entry != want {
				t.Errorf("Entry: got 0x%08x, want 0x%08x", got.Entry, want)
			}
			if got.Stack != 0 {
				t.Errorf("Stack: got 0x%08x, want 0", got.Stack)
			}
			if diff := cmp.Diff(imageA, got.Code); diff != "" {
				t.Errorf("Code diff (-want +got):\n%s", diff)
			}
			if got.Image != img {
				t.Errorf("Image: got %v, want %v", got.Image, img)
			}
		})
	}
}

func TestUnprovenImageRunsOutOfAttempts(t *testing.T) {
	r := newRegion(t)
	img := flash(t, r, slotA, imageA, 1)
	s := switcher.New(crc24.Default, &fakeJumper{}, switcher.WithBudgetPolicy(switcher.ShiftUnproven))

	for i := 0; i < 4; i++ {
		got := s.Select(img, img)
		if got == nil {
			t.Fatalf("boot %d: nothing selected", i)
		}
		if !boot(s, got) {
			t.Fatalf("boot %d: Boot returned", i)
		}
	}
	if got := s.Select(img, img); got != nil {
		t.Errorf("after four unproven boots: got %v, want nil", got)
	}
}

type returningJumper struct{}

func (returningJumper) Jump(switcher.Target) {}

func TestBootNeverReturns(t *testing.T) {
	r := newRegion(t)
	img := flash(t, r, slotA, imageA, 1)
	s := switcher.New(crc24.Default, returningJumper{})

	defer func() {
		if recover() == nil {
			t.Error("Boot returned after the jumper returned")
		}
	}()
	s.Boot(img)
}

func TestMarkSuccess(t *testing.T) {
	r := newRegion(t)
	img := flash(t, r, slotA, imageA, 1)
	img.Footer().SetAttempts(0)
	s := switcher.New(crc24.Default, &fakeJumper{})

	if s.Bootable(img) {
		t.Fatal("Bootable with no attempts: got true, want false")
	}
	switcher.MarkSuccess(img)
	if !s.Bootable(img) {
		t.Error("Bootable after MarkSuccess: got false, want true")
	}
	switcher.MarkSuccess(img)
	if !img.Footer().Succeeded() {
		t.Error("MarkSuccess is not idempotent")
	}
}

func TestMarkFailure(t *testing.T) {
	r := newRegion(t)
	img := flash(t, r, slotA, imageA, 1)
	switcher.MarkSuccess(img)
	s := switcher.New(crc24.Default, &fakeJumper{})

	if !s.Bootable(img) {
		t.Fatal("Bootable: got false, want true")
	}
	switcher.MarkFailure(img)
	switcher.MarkFailure(img)
	if s.Bootable(img) {
		t.Error("Bootable after MarkFailure: got true, want false")
	}
}

func TestParseBudgetPolicy(t *testing.T) {
	for _, p := range []switcher.BudgetPolicy{switcher.ShiftProven, switcher.ShiftUnproven} {
		got, err := switcher.ParseBudgetPolicy(p.String())
		if err != nil {
			t.Fatalf("ParseBudgetPolicy(%q): %v", p, err)
		}
		if got != p {
			t.Errorf("ParseBudgetPolicy(%q): got %v", p, got)
		}
	}
	if _, err := switcher.ParseBudgetPolicy("bogus"); err == nil {
		t.Error("ParseBudgetPolicy(bogus): want error, got none")
	}
}
