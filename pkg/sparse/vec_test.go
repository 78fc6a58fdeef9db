package sparse

import "testing"

type promiseState int

const (
	notPromised promiseState = iota
	promisedHigher
	promised
)

func TestVecDefaultAndSet(t *testing.T) {
	v := New[uint64](notPromised, 1000)

	v.Set(123, promised)
	v.Set(456, promisedHigher)

	tests := []struct {
		idx  uint64
		want promiseState
	}{
		{123, promised},
		{456, promisedHigher},
		{789, notPromised},
		{0, notPromised},
		{999, notPromised},
	}
	for i, tt := range tests {
		if g := v.At(tt.idx); g != tt.want {
			t.Errorf("#%d: At(%d) = %v, want %v", i, tt.idx, g, tt.want)
		}
	}
	if v.Allocated() != 2 {
		t.Fatalf("allocated = %d, want 2", v.Allocated())
	}
	if !v.Has(123) || v.Has(789) {
		t.Fatalf("unexpected Has results")
	}
}

func TestVecGetOutOfBounds(t *testing.T) {
	v := New[uint32]("x", 3)
	if g, ok := v.Get(2); !ok || g != "x" {
		t.Fatalf("Get(2) = %q, %v", g, ok)
	}
	if _, ok := v.Get(3); ok {
		t.Fatal("Get(3) should be out of bounds")
	}
}

func TestVecPanicsOutOfBounds(t *testing.T) {
	v := New[uint8](0, 4)
	for _, f := range []func(){
		func() { v.At(4) },
		func() { v.Set(10, 1) },
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			f()
		}()
	}
}

func TestVecUpdateAndReset(t *testing.T) {
	v := New[uint64](uint64(0), 8)
	v.Update(3, func(x uint64) uint64 { return x + 5 })
	v.Update(3, func(x uint64) uint64 { return x + 1 })
	if v.At(3) != 6 {
		t.Fatalf("At(3) = %d, want 6", v.At(3))
	}

	n := 0
	v.Range(func(k uint64, val uint64) bool {
		n++
		return true
	})
	if n != 1 {
		t.Fatalf("range visited %d slots, want 1", n)
	}

	v.Reset()
	if v.Allocated() != 0 || v.At(3) != 0 {
		t.Fatal("reset did not clear slots")
	}
	if New[uint64](0, 0).IsEmpty() != true {
		t.Fatal("zero-size vec should be empty")
	}
}
