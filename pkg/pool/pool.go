// Package pool provides object pooling to reduce GC pressure during ranking
// and mention scanning.
package pool

import (
	"sync"
)

// TokenSetPool pools map[string]struct{} used as word sets
var TokenSetPool = sync.Pool{
	New: func() interface{} {
		return make(map[string]struct{}, 32)
	},
}

// StringSlicePool pools []string
var StringSlicePool = sync.Pool{
	New: func() interface{} {
		return make([]string, 0, 16)
	},
}

// GetTokenSet gets an empty set from pool
func GetTokenSet() map[string]struct{} {
	m := TokenSetPool.Get().(map[string]struct{})
	for k := range m {
		delete(m, k)
	}
	return m
}

// PutTokenSet returns a set to pool
func PutTokenSet(m map[string]struct{}) {
	TokenSetPool.Put(m)
}

// GetStrings gets an empty string slice from pool
func GetStrings() []string {
	s := StringSlicePool.Get().([]string)
	return s[:0]
}

// PutStrings returns a slice to pool
func PutStrings(s []string) {
	StringSlicePool.Put(s[:0])
}
