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

//go:build !(darwin || freebsd || linux)

package capi

import (
	"errors"
	"unsafe"
)

var errUnsupported = errors.New("plugin loading is not supported on this platform")

func Open(path string) (*Library, error) {
	return nil, errUnsupported
}

func (l *Library) Close() error {
	return nil
}

func Call(fn uintptr, data unsafe.Pointer, n int) {
}
