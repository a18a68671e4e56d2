// Object pools for reducing GC pressure in hot paths
//
// Provides reusable coordinate buffers for the streaming and sampling
// paths, which fill and discard float slices at a fixed interval.
//
// Usage:
//
//	buf := pool.GetFloat64Slice()
//	defer pool.PutFloat64Slice(buf)
//	// use *buf...
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"sync"
)

var floatSlicePool = sync.Pool{
	New: func() any {
		s := make([]float64, 0, 256)
		return &s
	},
}

// GetFloat64Slice gets an empty float64 slice from the pool
func GetFloat64Slice() *[]float64 {
	s := floatSlicePool.Get().(*[]float64)
	*s = (*s)[:0]
	return s
}

// PutFloat64Slice returns a float64 slice to the pool
func PutFloat64Slice(s *[]float64) {
	if s == nil {
		return
	}
	// Don't pool oversized buffers
	if cap(*s) > 1<<16 {
		return
	}
	*s = (*s)[:0]
	floatSlicePool.Put(s)
}
