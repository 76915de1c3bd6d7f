// Package jsondiff computes structural differences between JSON values and
// between golden and actual output directories.
package jsondiff

import (
	"maps"
	"reflect"
	"slices"
	"strconv"
)

// Diff walks a and b in lock-step. Object key order never matters; array
// order always does. Paths are dotted for object keys and bracketed for array
// indices; a scalar change at the root is reported as ".".
func Diff(a, b any) (added, removed, changed []string) {
	d := &differ{}
	d.walk("", a, b)
	return d.added, d.removed, d.changed
}

// Equal reports whether a and b have no structural difference.
func Equal(a, b any) bool {
	added, removed, changed := Diff(a, b)
	return len(added) == 0 && len(removed) == 0 && len(changed) == 0
}

type differ struct {
	added, removed, changed []string
}

func (d *differ) walk(path string, a, b any) {
	am, aObj := a.(map[string]any)
	bm, bObj := b.(map[string]any)
	if aObj && bObj {
		d.objects(path, am, bm)
		return
	}
	al, aList := a.([]any)
	bl, bList := b.([]any)
	if aList && bList {
		d.arrays(path, al, bl)
		return
	}
	if !scalarEqual(a, b) {
		if path == "" {
			path = "."
		}
		d.changed = append(d.changed, path)
	}
}

func (d *differ) objects(path string, a, b map[string]any) {
	for _, key := range slices.Sorted(maps.Keys(b)) {
		if _, ok := a[key]; !ok {
			d.added = append(d.added, child(path, key))
		}
	}
	for _, key := range slices.Sorted(maps.Keys(a)) {
		if _, ok := b[key]; !ok {
			d.removed = append(d.removed, child(path, key))
		}
	}
	for _, key := range slices.Sorted(maps.Keys(a)) {
		if bv, ok := b[key]; ok {
			d.walk(child(path, key), a[key], bv)
		}
	}
}

func (d *differ) arrays(path string, a, b []any) {
	n := min(len(a), len(b))
	for i := range n {
		d.walk(index(path, i), a[i], b[i])
	}
	for i := n; i < len(b); i++ {
		d.added = append(d.added, index(path, i))
	}
	for i := n; i < len(a); i++ {
		d.removed = append(d.removed, index(path, i))
	}
}

func child(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

// scalarEqual compares leaves; mixed container/scalar pairs are unequal.
func scalarEqual(a, b any) bool {
	switch a.(type) {
	case nil, string, bool, float64:
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
