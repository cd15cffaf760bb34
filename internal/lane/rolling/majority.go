// Package rolling provides the fixed-window majority-vote filter used to
// smooth every categorical per-frame observation in the lane pipeline.
package rolling

import (
	"errors"
	"fmt"
)

// ErrInvalidShape is returned by New for a non-positive window or state count.
var ErrInvalidShape = errors.New("rolling: window and state count must be positive")

// MajorityFilter reports the most frequent state among the last W pushed
// states. States are small non-negative integers below K, normally an enum
// type defined by the caller.
//
// Counts are exact over the window; this is not a decaying average. The
// window starts as W copies of state 0, so a fresh filter reports 0 until
// another state outnumbers it. Ties go to the lower state.
//
// A MajorityFilter is not safe for concurrent use.
type MajorityFilter[S ~int] struct {
	window []S // most recent first
	counts []int
}

// New returns a filter with window length w over k states.
func New[S ~int](w, k int) (*MajorityFilter[S], error) {
	if w <= 0 || k <= 0 {
		return nil, fmt.Errorf("%w: window=%d states=%d", ErrInvalidShape, w, k)
	}
	f := &MajorityFilter[S]{
		window: make([]S, w),
		counts: make([]int, k),
	}
	f.counts[0] = w
	return f, nil
}

// MustNew is New for shapes fixed at compile time.
func MustNew[S ~int](w, k int) *MajorityFilter[S] {
	f, err := New[S](w, k)
	if err != nil {
		panic(err)
	}
	return f
}

// Valid reports whether s can be pushed.
func (f *MajorityFilter[S]) Valid(s S) bool {
	return int(s) >= 0 && int(s) < len(f.counts)
}

// Push records s as the newest observation, evicting the oldest, and returns
// the window's mode. Push panics if s is not Valid.
func (f *MajorityFilter[S]) Push(s S) S {
	if !f.Valid(s) {
		panic(fmt.Sprintf("rolling: state %d outside [0,%d)", int(s), len(f.counts)))
	}

	last := len(f.window) - 1
	f.counts[f.window[last]]--
	copy(f.window[1:], f.window[:last])
	f.window[0] = s
	f.counts[s]++

	return f.Mode()
}

// Mode returns the most frequent state in the window without changing it.
func (f *MajorityFilter[S]) Mode() S {
	best, bestCount := 0, 0
	for state, n := range f.counts {
		if n > bestCount {
			best, bestCount = state, n
		}
	}
	return S(best)
}

// Len returns the window length W.
func (f *MajorityFilter[S]) Len() int { return len(f.window) }

// States returns the state count K.
func (f *MajorityFilter[S]) States() int { return len(f.counts) }

// Counts returns a copy of the per-state occurrence counts. They always sum
// to Len().
func (f *MajorityFilter[S]) Counts() []int {
	out := make([]int, len(f.counts))
	copy(out, f.counts)
	return out
}

// Window returns a copy of the window, most recent first.
func (f *MajorityFilter[S]) Window() []S {
	out := make([]S, len(f.window))
	copy(out, f.window)
	return out
}
