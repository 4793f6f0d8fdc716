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

// Package config describes the flash layout of a board running the switcher.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/firmware-switcher/footer"
	"github.com/google/firmware-switcher/switcher"
	"gopkg.in/yaml.v3"
)

// Board describes where images live on a device.
type Board struct {
	// Flash is the path of the file backing the emulated flash part.
	Flash string `yaml:"Flash"`
	// Base is the address at which the flash is mapped.
	Base uint32 `yaml:"Base"`
	// Size is the size of the flash in bytes.
	Size uint32 `yaml:"Size"`
	// Slots holds the footer address of each image slot. Boards normally
	// have exactly two.
	Slots []uint32 `yaml:"Slots"`
	// Policy is the budget policy, "shift-proven" (the default) or
	// "shift-unproven".
	Policy string `yaml:"Policy"`
	// Preference is how two bootable images are ranked, "address" (the
	// default) or "version".
	Preference string `yaml:"Preference"`
}

// Load reads and validates a Board from the YAML file at path.
func Load(path string) (Board, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return Board{}, fmt.Errorf("failed to read board config %q: %w", path, err)
	}
	var b Board
	if err := yaml.Unmarshal(bs, &b); err != nil {
		return Board{}, fmt.Errorf("failed to parse board config %q: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return Board{}, fmt.Errorf("invalid board config %q: %w", path, err)
	}
	return b, nil
}

// Validate checks the board for obvious mistakes.
func (b Board) Validate() error {
	if b.Flash == "" {
		return errors.New("missing field: Flash")
	}
	if b.Size == 0 {
		return errors.New("missing field: Size")
	}
	end := uint64(b.Base) + uint64(b.Size)
	if end > 1<<32 {
		return fmt.Errorf("flash [0x%08x, +0x%x) overflows the address space", b.Base, b.Size)
	}
	if len(b.Slots) < 2 {
		return fmt.Errorf("need at least two slots, got %d", len(b.Slots))
	}
	seen := make(map[uint32]bool)
	for _, s := range b.Slots {
		if s < b.Base || uint64(s)+footer.Size > end {
			return fmt.Errorf("slot footer 0x%08x outside flash [0x%08x, 0x%08x)", s, b.Base, end)
		}
		if seen[s] {
			return fmt.Errorf("duplicate slot 0x%08x", s)
		}
		seen[s] = true
	}
	if _, err := b.BudgetPolicy(); err != nil {
		return err
	}
	if _, err := b.SwitcherPreference(); err != nil {
		return err
	}
	return nil
}

// BudgetPolicy returns the parsed Policy.
func (b Board) BudgetPolicy() (switcher.BudgetPolicy, error) {
	return switcher.ParseBudgetPolicy(b.Policy)
}

// SwitcherPreference returns the parsed Preference.
func (b Board) SwitcherPreference() (switcher.Preference, error) {
	switch b.Preference {
	case "", "address":
		return switcher.ByAddress, nil
	case "version":
		return switcher.ByVersion, nil
	}
	return nil, fmt.Errorf("unknown preference %q", b.Preference)
}

// Options returns the switcher options described by the board.
func (b Board) Options() ([]switcher.Option, error) {
	p, err := b.BudgetPolicy()
	if err != nil {
		return nil, err
	}
	pref, err := b.SwitcherPreference()
	if err != nil {
		return nil, err
	}
	return []switcher.Option{
		switcher.WithBudgetPolicy(p),
		switcher.WithPreference(pref),
	}, nil
}
