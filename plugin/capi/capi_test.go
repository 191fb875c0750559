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

package capi

import (
	"testing"
	"unsafe"
)

// tableSink pins fabricated tables and name buffers to the heap for the
// duration of the test binary; stack-allocated memory could move under the
// uintptr-based parsers.
var tableSink []any

func heapCString(s string) uintptr {
	buf := append([]byte(s), 0)
	tableSink = append(tableSink, buf)
	return uintptr(unsafe.Pointer(&buf[0]))
}

func heapTable(words []uintptr) uintptr {
	tableSink = append(tableSink, words)
	return uintptr(unsafe.Pointer(&words[0]))
}

// TestParseV2 reads a fabricated two-record v2 table: names resolve, every
// slot lands in order, and NULL entry points stay zero.
func TestParseV2(t *testing.T) {
	base := heapTable([]uintptr{
		heapCString("alpha_sort"), 0x1001, 0, 0x1003, 0, 0, 0x1006,
		heapCString("beta_sort"), 0, 0x2002, 0, 0, 0, 0,
	})
	algos := parseV2(base, 2)
	if len(algos) != 2 {
		t.Fatalf("got %d algorithms, want 2", len(algos))
	}
	a := algos[0]
	if a.Name != "alpha_sort" {
		t.Errorf("name = %q, want alpha_sort", a.Name)
	}
	if a.Fn[SlotI32] != 0x1001 || a.Fn[SlotI64] != 0x1003 || a.Fn[SlotF64] != 0x1006 {
		t.Errorf("entry points misread: %#v", a.Fn)
	}
	if a.Fn[SlotU32] != 0 || a.Fn[SlotU64] != 0 || a.Fn[SlotF32] != 0 {
		t.Errorf("NULL slots not zero: %#v", a.Fn)
	}
	b := algos[1]
	if b.Name != "beta_sort" || b.Fn[SlotU32] != 0x2002 {
		t.Errorf("second record misread: %q %#v", b.Name, b.Fn)
	}
}

// TestParseV2_DropsNamelessRecords skips records whose name pointer is NULL
// or empty instead of producing unusable entries.
func TestParseV2_DropsNamelessRecords(t *testing.T) {
	base := heapTable([]uintptr{
		0, 0x1001, 0, 0, 0, 0, 0,
		heapCString(""), 0x1001, 0, 0, 0, 0, 0,
		heapCString("gamma_sort"), 0x3001, 0, 0, 0, 0, 0,
	})
	algos := parseV2(base, 3)
	if len(algos) != 1 || algos[0].Name != "gamma_sort" {
		t.Fatalf("got %+v, want only gamma_sort", algos)
	}
}

// TestParseV1 reads the legacy two-word records: the single entry point
// lands in the i32 slot and every other slot stays zero.
func TestParseV1(t *testing.T) {
	base := heapTable([]uintptr{
		heapCString("legacy_sort"), 0x4001,
		heapCString("other_sort"), 0x4002,
	})
	algos := parseV1(base, 2)
	if len(algos) != 2 {
		t.Fatalf("got %d algorithms, want 2", len(algos))
	}
	if algos[0].Name != "legacy_sort" || algos[0].Fn[SlotI32] != 0x4001 {
		t.Errorf("first record misread: %q %#v", algos[0].Name, algos[0].Fn)
	}
	for s := SlotU32; s < NumSlots; s++ {
		if algos[0].Fn[s] != 0 {
			t.Errorf("slot %d = %#x, want 0", s, algos[0].Fn[s])
		}
	}
}

// TestGoString covers the C string reader, including the NULL pointer case.
func TestGoString(t *testing.T) {
	if got := goString(heapCString("hello")); got != "hello" {
		t.Errorf("goString = %q, want hello", got)
	}
	if got := goString(heapCString("")); got != "" {
		t.Errorf("goString of empty = %q", got)
	}
	if got := goString(0); got != "" {
		t.Errorf("goString(0) = %q, want empty", got)
	}
}
