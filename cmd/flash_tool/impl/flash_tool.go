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

// Package impl is the implementation of a util to write images into the
// emulated flash of a switcher device.
package impl

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/google/firmware-switcher/config"
	"github.com/google/firmware-switcher/crc24"
	"github.com/google/firmware-switcher/footer"
	"github.com/google/firmware-switcher/internal/flash"
	"github.com/google/firmware-switcher/switcher"
)

// FlashOpts encapsulates flash tool parameters.
type FlashOpts struct {
	// BoardConfig is the path of the board YAML file.
	BoardConfig string
	// Slot is the index of the slot to operate on.
	Slot int
	// ImageFile, if set, is written into the slot with a fresh footer.
	ImageFile string
	// Version is the version tag stored in the footer of ImageFile.
	Version uint
	// Erase blanks the whole flash first.
	Erase bool
	// Mark records an outcome for the image in the slot, as the running
	// image or a watchdog would: "success" or "failure".
	Mark string
	// Force creates the flash file if it does not exist yet.
	Force bool
	// Status writes a summary of every slot to Out.
	Status bool
	// Out receives the status summary. Nil means os.Stdout.
	Out io.Writer
}

// Main flashes and/or marks images according to opts.
func Main(opts FlashOpts) error {
	board, err := config.Load(opts.BoardConfig)
	if err != nil {
		return err
	}
	if opts.Slot < 0 || opts.Slot >= len(board.Slots) {
		return fmt.Errorf("slot %d out of range, board has %d slots", opts.Slot, len(board.Slots))
	}
	switch opts.Mark {
	case "", "success", "failure":
	default:
		return fmt.Errorf("unknown outcome %q, want success or failure", opts.Mark)
	}
	if opts.Version > 0xFF {
		return fmt.Errorf("version %d does not fit in 8 bits", opts.Version)
	}

	dev, err := flash.Open(board.Flash, board.Base, board.Size)
	if err != nil {
		if !errors.Is(err, flash.ErrNeedsInit) || !(opts.Force || opts.Erase) {
			return fmt.Errorf("failed to open flash (use --force to create it): %w", err)
		}
		glog.Warningf("Creating new flash %q", board.Flash)
		if dev, err = flash.Create(board.Flash, board.Base, board.Size); err != nil {
			return fmt.Errorf("failed to create flash: %w", err)
		}
	}

	if opts.Erase {
		glog.Infof("Erasing flash %q", board.Flash)
		dev.Erase()
	}

	addr := board.Slots[opts.Slot]
	if opts.ImageFile != "" {
		img, err := os.ReadFile(opts.ImageFile)
		if err != nil {
			return fmt.Errorf("failed to read image %q: %w", opts.ImageFile, err)
		}
		if err := writeImage(dev, addr, img, uint8(opts.Version)); err != nil {
			return err
		}
		glog.Infof("Wrote %d byte image (version %d) to slot %d", len(img), opts.Version, opts.Slot)
	}

	if opts.Mark != "" {
		img, err := switcher.Open(dev.Region(), addr)
		if err != nil {
			return fmt.Errorf("failed to open slot %d: %w", opts.Slot, err)
		}
		if opts.Mark == "success" {
			switcher.MarkSuccess(img)
		} else {
			switcher.MarkFailure(img)
		}
		glog.Infof("Marked %v: %s", img, opts.Mark)
	}

	if err := dev.Sync(); err != nil {
		return err
	}

	if opts.Status {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		for i, a := range board.Slots {
			img, err := switcher.Open(dev.Region(), a)
			if err != nil {
				return fmt.Errorf("failed to open slot %d: %w", i, err)
			}
			fmt.Fprintf(out, "slot %d %v: %v\n", i, img, img.Footer())
		}
	}
	return nil
}

// writeImage places img so that it ends at addr, followed by a fresh footer.
func writeImage(dev *flash.Device, addr uint32, img []byte, version uint8) error {
	if uint64(len(img)) > footer.MaxLength {
		return fmt.Errorf("image is %d bytes, footer can describe at most %d", len(img), footer.MaxLength)
	}
	n := uint32(len(img))
	r := dev.Region()
	if n > addr || addr-n < r.Base() {
		return fmt.Errorf("%d byte image does not fit below footer 0x%08x", n, addr)
	}
	f, err := footer.New(crc24.Calculate(img), version, n)
	if err != nil {
		return err
	}
	if err := r.Write(addr-n, img); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := r.Write(addr, f); err != nil {
		return fmt.Errorf("failed to write footer: %w", err)
	}
	return nil
}
