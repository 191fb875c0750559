// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: August 2026
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

//go:build darwin || freebsd || linux

package capi

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Open dlopens the library at path and reads its algorithm table, preferring
// the v2 getter and falling back to v1. A library exporting neither is an
// error, and the handle is closed before returning.
func Open(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lib := &Library{Path: path, handle: handle}
	if sym, err := purego.Dlsym(handle, "sortbench_get_algorithms_v2"); err == nil && sym != 0 {
		lib.Algorithms, err = readTable(sym, parseV2)
		if err != nil {
			lib.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return lib, nil
	}
	if sym, err := purego.Dlsym(handle, "sortbench_get_algorithms_v1"); err == nil && sym != 0 {
		lib.Algorithms, err = readTable(sym, parseV1)
		if err != nil {
			lib.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return lib, nil
	}
	lib.Close()
	return nil, fmt.Errorf("%s: no sortbench_get_algorithms_v1/v2 export", path)
}

// readTable invokes a getter and parses the table it reports. Getters return
// 1 on success.
func readTable(getter uintptr, parse func(uintptr, int) []Algorithm) ([]Algorithm, error) {
	var base uintptr
	var count int32
	r1, _, _ := purego.SyscallN(getter, uintptr(unsafe.Pointer(&base)), uintptr(unsafe.Pointer(&count)))
	if r1 == 0 {
		return nil, fmt.Errorf("algorithm getter reported failure")
	}
	if base == 0 || count <= 0 {
		return nil, nil
	}
	return parse(base, int(count)), nil
}

// Close releases the dlopen handle. Function pointers from the library are
// invalid afterward.
func (l *Library) Close() error {
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	return err
}

// Call invokes a void(T*, int) entry point on n elements starting at data.
func Call(fn uintptr, data unsafe.Pointer, n int) {
	purego.SyscallN(fn, uintptr(data), uintptr(n))
}
