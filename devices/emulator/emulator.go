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

// Package emulator provides a switcher.Jumper which "boots" images by running
// them as WebAssembly modules on the host.
//
// Booted images can report their outcome through the host functions
// env.mark_success and env.mark_failure, which write straight through to the
// image footer in the emulated flash.
package emulator

import (
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/google/firmware-switcher/switcher"
	"github.com/perlin-network/life/exec"
	wasm_validation "github.com/perlin-network/life/wasm-validation"
)

// DefaultEntryPoint is the exported function run when an image boots.
const DefaultEntryPoint = "main"

// Jumper runs booted images in a WebAssembly VM, then halts the emulated
// device.
type Jumper struct {
	// EntryPoint is the name of the exported function to run. If the image
	// does not export it, the first function in the image is run.
	EntryPoint string
	// Sync persists the emulated flash. It is called before the image starts,
	// whenever the image reports an outcome, and when the image stops.
	Sync func() error
	// Exit halts the device. It defaults to os.Exit.
	Exit func(code int)
}

var _ switcher.Jumper = &Jumper{}

// Jump runs the image and then halts the device; it never returns.
// The exit status is zero if the image ran to completion.
func (j *Jumper) Jump(t switcher.Target) {
	code := 0
	if err := j.run(t); err != nil {
		glog.Errorf("emulator: %v", err)
		code = 1
	}
	glog.Info("----HALT----")
	exit := j.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(code)
	panic("emulator: Exit returned")
}

func (j *Jumper) sync() error {
	if j.Sync == nil {
		return nil
	}
	return j.Sync()
}

func (j *Jumper) run(t switcher.Target) error {
	if err := j.sync(); err != nil {
		return fmt.Errorf("failed to persist flash before boot: %w", err)
	}
	entry := j.EntryPoint
	if entry == "" {
		entry = DefaultEntryPoint
	}
	glog.Infof("emulator: jumping to 0x%08x (sp=0x%08x), %d bytes", t.Entry, t.Stack, len(t.Code))
	runErr := bootWasm(entry, t.Code, &resolver{img: t.Image, sync: j.sync})
	if err := j.sync(); err != nil {
		return fmt.Errorf("failed to persist flash after run: %w", err)
	}
	return runErr
}

// resolver defines the host functions available to booted images.
type resolver struct {
	img  *switcher.Image
	sync func() error
}

// ResolveFunc defines a set of import functions that may be called within a WebAssembly module.
func (r *resolver) ResolveFunc(module, field string) exec.FunctionImport {
	switch module {
	case "env":
		switch field {
		case "mark_success":
			return func(vm *exec.VirtualMachine) int64 {
				glog.Infof("[app] marking %v successful", r.img)
				switcher.MarkSuccess(r.img)
				return r.persist()
			}
		case "mark_failure":
			return func(vm *exec.VirtualMachine) int64 {
				glog.Infof("[app] marking %v failed", r.img)
				switcher.MarkFailure(r.img)
				return r.persist()
			}
		case "__life_log":
			return func(vm *exec.VirtualMachine) int64 {
				ptr := int(uint32(vm.GetCurrentFrame().Locals[0]))
				msgLen := int(uint32(vm.GetCurrentFrame().Locals[1]))
				msg := vm.Memory[ptr : ptr+msgLen]
				glog.Infof("[app] %s", string(msg))
				return 0
			}
		case "print":
			return func(vm *exec.VirtualMachine) int64 {
				ptr := int(uint32(vm.GetCurrentFrame().Locals[0]))
				n := 0
				for vm.Memory[ptr+n] != 0 {
					n++
				}
				glog.Infof("[app] print: %s", string(vm.Memory[ptr:ptr+n]))
				return 0
			}
		default:
			panic(fmt.Errorf("unknown field: %s", field))
		}
	default:
		panic(fmt.Errorf("unknown module: %s", module))
	}
}

// ResolveGlobal defines a set of global variables for use within a WebAssembly module.
func (r *resolver) ResolveGlobal(module, field string) int64 {
	panic(fmt.Errorf("unknown global: %s.%s", module, field))
}

// persist syncs the flash after the image reported an outcome, returning
// the status seen by the image: 0 on success, 1 on failure.
func (r *resolver) persist() int64 {
	if err := r.sync(); err != nil {
		glog.Errorf("emulator: failed to persist outcome: %v", err)
		return 1
	}
	return 0
}

// bootWasm prepares the VM with the provided wasm binary and calls the
// function named by entryPoint.
//
// Note that if the VM is unable to find the specified entrypoint, it falls
// back to executing the first function in the binary.
func bootWasm(entryPoint string, input []byte, r exec.ImportResolver) error {
	if err := wasm_validation.ValidateWasm(input); err != nil {
		return fmt.Errorf("invalid image: %w", err)
	}

	vm, err := exec.NewVirtualMachine(input, exec.VMConfig{
		DefaultMemoryPages:   128,
		DefaultTableSize:     65536,
		DisableFloatingPoint: false,
	}, r, nil)
	if err != nil {
		return fmt.Errorf("failed to instantiate image: %w", err)
	}

	entryID, ok := vm.GetFunctionExport(entryPoint)
	if !ok {
		glog.Warningf("emulator: entry function %s not found; starting from 0", entryPoint)
		entryID = 0
	}

	start := time.Now()

	// If the module declares a start function, it runs before the entry point.
	if vm.Module.Base.Start != nil {
		startID := int(vm.Module.Base.Start.Index)
		if _, err := vm.Run(startID); err != nil {
			vm.PrintStackTrace()
			return fmt.Errorf("start function: %w", err)
		}
	}
	ret, err := vm.Run(entryID)
	if err != nil {
		vm.PrintStackTrace()
		return fmt.Errorf("%s: %w", entryPoint, err)
	}

	glog.Infof("emulator: image returned %d after %v", ret, time.Since(start))
	return nil
}
