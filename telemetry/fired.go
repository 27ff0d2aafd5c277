package telemetry

import (
	"maps"
	"slices"
)

// FiredSet records which one-shot events have already been emitted.
// Entries are never removed. The zero value is ready to use.
type FiredSet struct {
	m map[Kind]struct{}
}

// Fire marks k as fired and reports whether this call did it.
func (f *FiredSet) Fire(k Kind) bool {
	if _, ok := f.m[k]; ok {
		return false
	}
	if f.m == nil {
		f.m = make(map[Kind]struct{})
	}
	f.m[k] = struct{}{}
	return true
}

// Has reports whether k has fired.
func (f *FiredSet) Has(k Kind) bool {
	_, ok := f.m[k]
	return ok
}

// Kinds returns the fired kinds in sorted order.
func (f *FiredSet) Kinds() []Kind {
	return slices.Sorted(maps.Keys(f.m))
}

// Len returns the number of fired kinds.
func (f *FiredSet) Len() int { return len(f.m) }
