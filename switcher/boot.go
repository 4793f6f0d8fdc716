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

	"github.com/golang/glog"
	"github.com/google/firmware-switcher/footer"
)

// BudgetPolicy decides when booting an image spends its attempt budget.
//
// The budget is spent by shifting it left one bit, which only ever clears
// bits and so can be programmed without an erase cycle.
type BudgetPolicy int

const (
	// ShiftProven shifts the budget when booting an image which has already
	// succeeded. This matches the behaviour of deployed bootloaders.
	ShiftProven BudgetPolicy = iota
	// ShiftUnproven shifts the budget when booting an image which has not yet
	// succeeded, giving a fresh image four boot attempts to mark itself
	// successful.
	ShiftUnproven
)

func (p BudgetPolicy) String() string {
	switch p {
	case ShiftProven:
		return "shift-proven"
	case ShiftUnproven:
		return "shift-unproven"
	}
	return fmt.Sprintf("BudgetPolicy(%d)", int(p))
}

// ParseBudgetPolicy parses the String form of a BudgetPolicy.
func ParseBudgetPolicy(s string) (BudgetPolicy, error) {
	switch s {
	case "shift-proven", "":
		return ShiftProven, nil
	case "shift-unproven":
		return ShiftUnproven, nil
	}
	return 0, fmt.Errorf("unknown budget policy %q", s)
}

func (p BudgetPolicy) spends(f footer.Footer) bool {
	if p == ShiftUnproven {
		return !f.Succeeded()
	}
	return f.Succeeded()
}

// Target describes where control is transferred to.
type Target struct {
	// Entry is the address of the first byte of the image.
	Entry uint32
	// Stack is the initial stack pointer.
	Stack uint32
	// Code holds the image bytes, for jumpers which cannot execute in place.
	Code []byte
	// Image is the booted image. From here on its footer belongs to the
	// running image, which reports back through MarkSuccess or MarkFailure.
	Image *Image
}

// Jumper transfers control to a booted image.
//
// Jump must never return: it either starts executing the target or halts
// the device.
type Jumper interface {
	Jump(Target)
}

// Boot boots img. If img is nil, Boot returns immediately and the caller
// must deal with there being nothing to boot.
//
// Otherwise the attempt budget is updated according to the budget policy and
// control is transferred to the start of the image with an empty stack. Boot
// does not return once given an image.
func (s *Switcher) Boot(img *Image) {
	if img == nil {
		return
	}

	b, err := img.Bytes()
	if err != nil {
		panic(fmt.Sprintf("switcher: cannot boot %v: %v", img, err))
	}
	start, _ := img.Start()

	f := img.footer
	if s.policy.spends(f) {
		f.SetAttempts(f.Attempts() << 1)
	}

	glog.Infof("switcher: booting %v, entry 0x%08x, %v", img, start, f)
	s.jumper.Jump(Target{
		Entry: start,
		Stack: 0,
		Code:  b,
		Image: img,
	})
	panic(fmt.Sprintf("switcher: jump to %v returned", img))
}
