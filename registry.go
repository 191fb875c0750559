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

package sortbench

import (
	"cmp"
	"strings"
	"sync"
	"unsafe"

	"sortbench/plugin/capi"
)

// Version identifies the engine build; it is surfaced by the HTTP /meta
// endpoint and the CLI --version flag.
const Version = "2.0.0"

// Algorithm pairs a registry name with an in-place sort over one element
// type.
type Algorithm[T cmp.Ordered] struct {
	Name string
	Fn   func([]T)
}

// builtinAlgorithms lists the comparison sorts available for every element
// type, in registry order. Type-specific entries (radix) come from
// typeOps.extra.
func builtinAlgorithms[T cmp.Ordered]() []Algorithm[T] {
	return []Algorithm[T]{
		{Name: "std_sort", Fn: stdSort[T]},
		{Name: "std_stable_sort", Fn: stdStableSort[T]},
		{Name: "heap_sort", Fn: heapSort[T]},
		{Name: "merge_sort_opt", Fn: mergeSortOpt[T]},
		{Name: "insertion_sort", Fn: insertionSort[T]},
		{Name: "selection_sort", Fn: selectionSort[T]},
		{Name: "bubble_sort", Fn: bubbleSort[T]},
		{Name: "comb_sort", Fn: combSort[T]},
		{Name: "shell_sort", Fn: shellSort[T]},
		{Name: "timsort", Fn: timSort[T]},
		{Name: "quicksort_hybrid", Fn: quicksortHybrid[T]},
		{Name: "quicksort_3way", Fn: quicksort3Way[T]},
	}
}

func registryFor[T cmp.Ordered](ops typeOps[T]) []Algorithm[T] {
	return append(builtinAlgorithms[T](), ops.extra...)
}

// selectAlgorithms resolves the run's algorithm set: built-ins plus plugin
// contributions, narrowed by cfg.Algos and then cfg.Exclude when present.
// Names that match nothing are dropped silently, so the result may be empty.
func selectAlgorithms[T cmp.Ordered](cfg Config, ops typeOps[T]) ([]Algorithm[T], []string, error) {
	algos := registryFor(ops)
	var warns []string
	for _, path := range cfg.Plugins {
		if ops.capiSlot < 0 {
			warns = append(warns, "plugin "+path+" skipped: string elements not supported")
			continue
		}
		lib, err := acquirePlugin(path)
		if err != nil {
			warns = append(warns, "plugin "+path+" skipped: "+err.Error())
			continue
		}
		if lib == nil {
			warns = append(warns, "plugin "+path+" provides no algorithms")
			continue
		}
		algos = append(algos, pluginAlgorithms[T](lib, ops.capiSlot)...)
	}
	if len(cfg.Algos) > 0 {
		keep := algos[:0:0]
		for _, a := range algos {
			for _, want := range cfg.Algos {
				if strings.EqualFold(a.Name, want) {
					keep = append(keep, a)
					break
				}
			}
		}
		algos = keep
	}
	if len(cfg.Exclude) > 0 {
		keep := algos[:0:0]
		for _, a := range algos {
			if !nameListed(cfg.Exclude, a.Name) {
				keep = append(keep, a)
			}
		}
		algos = keep
	}
	return algos, warns, nil
}

func nameListed(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// pluginAlgorithms wraps the library's entry points for one element type as
// registry entries. Entries without a function for the type contribute
// nothing.
func pluginAlgorithms[T cmp.Ordered](lib *capi.Library, slot int) []Algorithm[T] {
	var out []Algorithm[T]
	for _, a := range lib.Algorithms {
		fn := a.Fn[slot]
		if fn == 0 {
			continue
		}
		out = append(out, Algorithm[T]{Name: a.Name, Fn: func(v []T) {
			if len(v) == 0 {
				return
			}
			capi.Call(fn, unsafe.Pointer(unsafe.SliceData(v)), len(v))
		}})
	}
	return out
}

// pluginCache keeps libraries that contribute algorithms open for the life
// of the process; their function pointers are reachable from cached run
// configurations, so they are never dlclosed.
var pluginCache = struct {
	mu   sync.Mutex
	libs map[string]*capi.Library
}{libs: make(map[string]*capi.Library)}

// acquirePlugin opens (or returns the cached) library at path. Libraries
// that export no algorithms are closed immediately and reported as nil.
func acquirePlugin(path string) (*capi.Library, error) {
	pluginCache.mu.Lock()
	defer pluginCache.mu.Unlock()
	if lib, ok := pluginCache.libs[path]; ok {
		return lib, nil
	}
	lib, err := capi.Open(path)
	if err != nil {
		return nil, err
	}
	if len(lib.Algorithms) == 0 {
		lib.Close()
		return nil, nil
	}
	pluginCache.libs[path] = lib
	return lib, nil
}

// ListAlgorithms reports the registry names available for one element type,
// probing plugin libraries transiently (opened, read, closed). A library
// that fails to open is skipped with a warning, never an error.
func ListAlgorithms(t ElemType, plugins []string) ([]string, []string, error) {
	var names []string
	switch t {
	case I32:
		names = algorithmNames(i32Ops())
	case U32:
		names = algorithmNames(u32Ops())
	case I64:
		names = algorithmNames(i64Ops())
	case U64:
		names = algorithmNames(u64Ops())
	case F32:
		names = algorithmNames(f32Ops())
	case F64:
		names = algorithmNames(f64Ops())
	case Str:
		names = algorithmNames(strOps())
	default:
		return nil, nil, engineErrf(ErrInvalidConfig, "invalid type")
	}
	var warns []string
	for _, path := range plugins {
		if t == Str {
			warns = append(warns, "plugin "+path+" skipped: string elements not supported")
			continue
		}
		lib, err := capi.Open(path)
		if err != nil {
			warns = append(warns, "plugin "+path+" skipped: "+err.Error())
			continue
		}
		slot := capiSlotFor(t)
		for _, a := range lib.Algorithms {
			if a.Fn[slot] != 0 {
				names = append(names, a.Name)
			}
		}
		lib.Close()
	}
	return names, warns, nil
}

func algorithmNames[T cmp.Ordered](ops typeOps[T]) []string {
	algos := registryFor(ops)
	names := make([]string, len(algos))
	for i, a := range algos {
		names[i] = a.Name
	}
	return names
}

func capiSlotFor(t ElemType) int {
	switch t {
	case I32:
		return capi.SlotI32
	case U32:
		return capi.SlotU32
	case I64:
		return capi.SlotI64
	case U64:
		return capi.SlotU64
	case F32:
		return capi.SlotF32
	case F64:
		return capi.SlotF64
	}
	return -1
}

// Meta describes the engine surface: what can be benchmarked and with what.
type Meta struct {
	Version    string              `json:"version"`
	Types      []string            `json:"types"`
	Dists      []string            `json:"dists"`
	Algorithms map[string][]string `json:"algorithms"`
	Warnings   []string            `json:"warnings,omitempty"`
}

// Describe assembles the Meta document, probing the given plugin libraries
// once per element type.
func Describe(plugins []string) (*Meta, error) {
	m := &Meta{
		Version:    Version,
		Types:      ElemTypes(),
		Dists:      Dists(),
		Algorithms: make(map[string][]string, len(elemTypeNames)),
	}
	for i := range elemTypeNames {
		t := ElemType(i)
		names, warns, err := ListAlgorithms(t, plugins)
		if err != nil {
			return nil, err
		}
		m.Algorithms[t.String()] = names
		// The numeric types all produce the same load diagnostics; keep
		// one copy, plus the string-type skip notice.
		if t == I32 || t == Str {
			m.Warnings = append(m.Warnings, warns...)
		}
	}
	return m, nil
}
