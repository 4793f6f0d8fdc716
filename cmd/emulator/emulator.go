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

// emulator is an emulated device running the switcher as its first stage
// bootloader.
//
// The device's flash lives in a file described by the board config. On each
// run ("reset") the switcher picks an image from the configured slots and
// runs it as a WebAssembly module. Images report back by calling the host
// functions env.mark_success or env.mark_failure; the outcome, along with the
// attempt bookkeeping, is written back to the flash file.
//
// Usage:
//
//	go run ./cmd/emulator --logtostderr --board=config/example_board.yaml
package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/google/firmware-switcher/cmd/emulator/impl"
)

var (
	board      = flag.String("board", "", "Path to the board config YAML file")
	entryPoint = flag.String("entry_point", "main", "Exported function to run in the booted image")
)

func main() {
	flag.Parse()

	if err := impl.Main(impl.EmulatorOpts{
		BoardConfig: *board,
		EntryPoint:  *entryPoint,
	}); err != nil {
		glog.Exitf("switcher: %v", err)
	}
}
