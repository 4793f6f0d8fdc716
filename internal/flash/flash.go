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

// Package flash provides a fake flash part backed by a file on the local
// filesystem, so that footer updates survive emulated power cycles.
package flash

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/google/firmware-switcher/memory"
)

// ErrNeedsInit indicates that the flash file does not exist yet and the
// device needs to be erased before use.
var ErrNeedsInit = errors.New("flash not initialised")

// Erased is the value of every byte of freshly erased flash.
const Erased = 0xFF

// Device is a flash part whose contents are mirrored in a file.
type Device struct {
	path   string
	region *memory.Region
}

// Open loads the flash contents stored at path, mapped at base.
//
// The file must be exactly size bytes long.
func Open(path string, base, size uint32) (*Device, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("couldn't read flash file %q: %w", path, ErrNeedsInit)
		}
		return nil, fmt.Errorf("failed to read flash file %q: %w", path, err)
	}
	if uint64(len(b)) != uint64(size) {
		return nil, fmt.Errorf("flash file %q is %d bytes, want %d", path, len(b), size)
	}
	r, err := memory.New(base, b)
	if err != nil {
		return nil, err
	}
	return &Device{path: path, region: r}, nil
}

// Create returns an erased device of size bytes mapped at base. Nothing is
// written to path until Sync is called.
func Create(path string, base, size uint32) (*Device, error) {
	r, err := memory.New(base, make([]byte, size))
	if err != nil {
		return nil, err
	}
	d := &Device{path: path, region: r}
	d.Erase()
	return d, nil
}

// Region returns the memory view of the device. Changes made through it are
// persisted by the next Sync.
func (d *Device) Region() *memory.Region {
	return d.region
}

// Erase sets every byte of the device to Erased.
func (d *Device) Erase() {
	b := d.region.Bytes()
	for i := range b {
		b[i] = Erased
	}
}

// Sync writes the device contents back to its file.
//
// The file is replaced atomically so that an interrupted write cannot leave
// a half-written flash image behind.
func (d *Device) Sync() error {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(d.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary flash file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			glog.Warningf("failed to remove %q: %v", tmp, err)
		}
	}()
	if _, err := f.Write(d.region.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write flash to %q: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("failed to rename %q to %q: %w", tmp, d.path, err)
	}
	glog.V(1).Infof("flash: synced %d bytes to %q", len(d.region.Bytes()), d.path)
	return nil
}
