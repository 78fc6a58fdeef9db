// Package sparse provides a map-backed vector with a declared bound and a
// default value for slots that were never written.
package sparse

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Vec behaves like a fixed-size slice of length Len but only allocates the
// slots that have been written. Unset slots read as the default value.
// Indexing at or beyond Len is a contract violation and panics.
type Vec[K constraints.Unsigned, V any] struct {
	def  V
	size K
	data map[K]V
}

func New[K constraints.Unsigned, V any](def V, size K) *Vec[K, V] {
	return &Vec[K, V]{
		def:  def,
		size: size,
		data: make(map[K]V),
	}
}

// Get returns the value at k, or false when k is out of bounds.
func (v *Vec[K, V]) Get(k K) (V, bool) {
	if k >= v.size {
		var zero V
		return zero, false
	}
	if val, ok := v.data[k]; ok {
		return val, true
	}
	return v.def, true
}

// At returns the value at k and panics when k is out of bounds.
func (v *Vec[K, V]) At(k K) V {
	v.mustInBound(k)
	if val, ok := v.data[k]; ok {
		return val
	}
	return v.def
}

// Set stores val at k and panics when k is out of bounds.
func (v *Vec[K, V]) Set(k K, val V) {
	v.mustInBound(k)
	v.data[k] = val
}

// Update applies fn to the current value at k and stores the result.
func (v *Vec[K, V]) Update(k K, fn func(V) V) V {
	val := fn(v.At(k))
	v.data[k] = val
	return val
}

// Has reports whether k has been written.
func (v *Vec[K, V]) Has(k K) bool {
	_, ok := v.data[k]
	return ok
}

// Reset forgets every written slot.
func (v *Vec[K, V]) Reset() {
	v.data = make(map[K]V)
}

func (v *Vec[K, V]) Len() K { return v.size }

func (v *Vec[K, V]) IsEmpty() bool { return v.size == 0 }

// Allocated is the number of slots that hold a written value.
func (v *Vec[K, V]) Allocated() int { return len(v.data) }

// Range calls fn for every written slot, in no particular order.
// Iteration stops when fn returns false.
func (v *Vec[K, V]) Range(fn func(k K, val V) bool) {
	for k, val := range v.data {
		if !fn(k, val) {
			return
		}
	}
}

func (v *Vec[K, V]) mustInBound(k K) {
	if k >= v.size {
		panic(fmt.Sprintf("sparse: index %d out of bounds for Vec of size %d", k, v.size))
	}
}
