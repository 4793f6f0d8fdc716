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

// Package impl is the implementation of the switcher emulator.
package impl

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/google/firmware-switcher/config"
	"github.com/google/firmware-switcher/crc24"
	"github.com/google/firmware-switcher/devices/emulator"
	"github.com/google/firmware-switcher/internal/flash"
	"github.com/google/firmware-switcher/switcher"
)

// ErrNothingBootable is returned when none of the slots holds a bootable
// image.
var ErrNothingBootable = errors.New("no bootable image")

// EmulatorOpts encapsulates the parameters for running the emulator.
type EmulatorOpts struct {
	// BoardConfig is the path of the board YAML file.
	BoardConfig string
	// EntryPoint is the function run in the booted image.
	EntryPoint string
	// Exit halts the emulated device once an image has run. Nil means os.Exit.
	Exit func(code int)
}

// Main emulates a device reset: it picks an image from the emulated flash
// and boots it.
//
// Main only returns if nothing could be booted, or the emulated device
// could not be brought up.
func Main(opts EmulatorOpts) error {
	glog.Info("----RESET----")

	board, err := config.Load(opts.BoardConfig)
	if err != nil {
		return err
	}
	sOpts, err := board.Options()
	if err != nil {
		return err
	}

	glog.Infof("Mapping flash %q at 0x%08x...", board.Flash, board.Base)
	dev, err := flash.Open(board.Flash, board.Base, board.Size)
	if err != nil {
		return fmt.Errorf("failed to open flash: %w", err)
	}

	images := make([]*switcher.Image, 0, len(board.Slots))
	for _, addr := range board.Slots {
		img, err := switcher.Open(dev.Region(), addr)
		if err != nil {
			return fmt.Errorf("failed to open slot: %w", err)
		}
		glog.Infof("%v: %v", img, img.Footer())
		images = append(images, img)
	}

	j := &emulator.Jumper{
		EntryPoint: opts.EntryPoint,
		Sync:       dev.Sync,
		Exit:       opts.Exit,
	}
	s := switcher.New(crc24.Default, j, sOpts...)

	var img *switcher.Image
	if len(images) == 2 {
		img = s.Select(images[0], images[1])
	} else {
		img = s.SelectN(images...)
	}
	s.Boot(img)

	// Boot only returns when there was nothing to boot. Keep whatever
	// checksum results were recorded on the way.
	if err := dev.Sync(); err != nil {
		return fmt.Errorf("failed to persist flash: %w", err)
	}
	return ErrNothingBootable
}
