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

// flash_tool is a util to write images into the emulated flash of a switcher
// device, and to record boot outcomes the way a running image or a watchdog
// would.
//
// Usage:
//
//	go run ./cmd/flash_tool --logtostderr --board=config/example_board.yaml --force --erase
//	go run ./cmd/flash_tool --logtostderr --board=config/example_board.yaml --slot=1 --image=fw.wasm --version=2
//	go run ./cmd/flash_tool --logtostderr --board=config/example_board.yaml --slot=1 --mark=failure --status
package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/google/firmware-switcher/cmd/flash_tool/impl"
)

var (
	board     = flag.String("board", "", "Path to the board config YAML file")
	slot      = flag.Int("slot", 0, "Index of the slot to operate on")
	imageFile = flag.String("image", "", "File path of an image to write into the slot")
	version   = flag.Uint("version", 0, "Version tag for the written image")
	erase     = flag.Bool("erase", false, "Erase the whole flash first")
	mark      = flag.String("mark", "", "Record an outcome for the slot's image: success or failure")
	force     = flag.Bool("force", false, "Create the flash file if it does not exist")
	status    = flag.Bool("status", false, "Print the footer of every slot")
)

func main() {
	flag.Parse()

	if err := impl.Main(impl.FlashOpts{
		BoardConfig: *board,
		Slot:        *slot,
		ImageFile:   *imageFile,
		Version:     *version,
		Erase:       *erase,
		Mark:        *mark,
		Force:       *force,
		Status:      *status,
	}); err != nil {
		glog.Exit(err.Error())
	}
}
