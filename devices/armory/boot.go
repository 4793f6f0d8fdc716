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

// Package armory transfers control to a booted image on the USB armory Mk II.
package armory

import (
	"log"

	"github.com/google/firmware-switcher/switcher"
	"github.com/usbarmory/tamago/arm"
	usbarmory "github.com/usbarmory/tamago/board/usbarmory/mk2"
	"github.com/usbarmory/tamago/soc/nxp/imx6ul"
)

// defined in boot_arm.s
func exec(entry uint32, sp uint32)
func svc()

// Jumper jumps into images executing in place from memory.
type Jumper struct{}

var _ switcher.Jumper = Jumper{}

// Jump switches to supervisor mode, disables the caches and branches to the
// image entry point with the requested stack pointer.
func (Jumper) Jump(t switcher.Target) {
	arm.SystemExceptionHandler = func(n int) {
		if n != arm.SUPERVISOR {
			panic("unhandled exception")
		}

		log.Printf("switcher: starting image@%x sp@%x", t.Entry, t.Stack)

		usbarmory.LED("blue", false)
		usbarmory.LED("white", false)

		imx6ul.ARM.FlushDataCache()
		imx6ul.ARM.DisableCache()

		exec(t.Entry, t.Stack)
	}

	svc()
	panic("switcher: returned from image")
}
