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

// Package capi loads sort algorithms from C shared libraries.
//
// A library exports one of two getters. The preferred v2 form covers all
// numeric element types, any of which may be NULL:
//
//	typedef struct {
//	    const char *name;
//	    void (*run_i32)(int32_t *, int);
//	    void (*run_u32)(uint32_t *, int);
//	    void (*run_i64)(int64_t *, int);
//	    void (*run_u64)(uint64_t *, int);
//	    void (*run_f32)(float *, int);
//	    void (*run_f64)(double *, int);
//	} sortbench_algorithm_v2;
//
//	int sortbench_get_algorithms_v2(const sortbench_algorithm_v2 **out, int *count);
//
// The legacy v1 form carries only an int32 entry point:
//
//	typedef struct {
//	    const char *name;
//	    void (*run_i32)(int32_t *, int);
//	} sortbench_algorithm_v1;
//
//	int sortbench_get_algorithms_v1(const sortbench_algorithm_v1 **out, int *count);
//
// Both getters return 1 on success and leave *out pointing at a static array
// of *count records. The table and the strings it references must stay valid
// until the library is closed.
package capi

import "unsafe"

// Slot indices into Algorithm.Fn, matching the v2 struct field order.
const (
	SlotI32 = iota
	SlotU32
	SlotI64
	SlotU64
	SlotF32
	SlotF64
	NumSlots
)

// Algorithm is one record from a library's table: a name and up to NumSlots
// entry points, zero where the library left the field NULL.
type Algorithm struct {
	Name string
	Fn   [NumSlots]uintptr
}

// Library is an opened shared object and the algorithms it exports.
type Library struct {
	Path       string
	Algorithms []Algorithm

	handle uintptr
}

const ptrSize = unsafe.Sizeof(uintptr(0))

// parseV2 reads count sortbench_algorithm_v2 records starting at base.
// Records with a NULL or empty name are dropped.
func parseV2(base uintptr, count int) []Algorithm {
	const recSize = (1 + NumSlots) * ptrSize
	out := make([]Algorithm, 0, count)
	for i := 0; i < count; i++ {
		rec := base + uintptr(i)*recSize
		a := Algorithm{Name: goString(*(*uintptr)(unsafe.Pointer(rec)))}
		if a.Name == "" {
			continue
		}
		for s := 0; s < NumSlots; s++ {
			a.Fn[s] = *(*uintptr)(unsafe.Pointer(rec + uintptr(1+s)*ptrSize))
		}
		out = append(out, a)
	}
	return out
}

// parseV1 reads count sortbench_algorithm_v1 records starting at base. The
// single entry point lands in SlotI32.
func parseV1(base uintptr, count int) []Algorithm {
	const recSize = 2 * ptrSize
	out := make([]Algorithm, 0, count)
	for i := 0; i < count; i++ {
		rec := base + uintptr(i)*recSize
		a := Algorithm{Name: goString(*(*uintptr)(unsafe.Pointer(rec)))}
		if a.Name == "" {
			continue
		}
		a.Fn[SlotI32] = *(*uintptr)(unsafe.Pointer(rec + ptrSize))
		out = append(out, a)
	}
	return out
}

// goString copies a NUL-terminated C string.
func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Pointer(p + uintptr(n))) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}
