// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package art implements a hybrid Adaptive Radix Tree: a mutable ART
// (dynamic tree) with insert/upsert/erase/lookup/range-scan, and a
// one-shot Merge into a compact, read-optimized static representation.
// The index is not safe for concurrent use.
package art

import "errors"

// ErrInvalidKeyLength is returned by New for a non-positive key length.
var ErrInvalidKeyLength = errors.New("art: keyLen must be positive")

// ErrInvalidCacheSize is returned by New for a negative prefix-cache size.
var ErrInvalidCacheSize = errors.New("art: cacheSize must be >= 0")

// options configures a new Index.
type options struct {
	cacheSize int
}

// Option configures New.
type Option func(*options)

// WithPrefixCacheSize bounds the LRU (C10) that memoizes leaf-recovered
// prefix tails. A size of 0 disables the cache entirely (every deep-prefix
// compare re-walks to a leaf); the default is 4096 entries.
func WithPrefixCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// Index is the public façade (C9): it owns the dynamic tree, the static
// tree produced by Merge, and the memory-accounting counters.
type Index struct {
	keyLen       int
	cacheSize    int
	tree         *Tree
	staticRoot   node
	staticMemory uint64
}

// New creates an Index over fixed-length keys of size keyLen.
func New(keyLen int, opts ...Option) (*Index, error) {
	if keyLen <= 0 {
		return nil, ErrInvalidKeyLength
	}
	o := options{cacheSize: 4096}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheSize < 0 {
		return nil, ErrInvalidCacheSize
	}
	tr, err := newTree(keyLen, o.cacheSize)
	if err != nil {
		return nil, err
	}
	return &Index{keyLen: keyLen, cacheSize: o.cacheSize, tree: tr}, nil
}

// Insert stores value under key. It returns whether the tree changed, and
// ErrKeyExhausted if key's residual bytes run out before it diverges from
// an existing leaf (spec.md §9's silent-drop case, made explicit).
func (idx *Index) Insert(key []byte, value uint64) (bool, error) {
	return idx.tree.Insert(key, value)
}

// Upsert replaces the value of an existing key without any structural
// change. It is a no-op if key is absent, including if key was only ever
// present in the static tree.
func (idx *Index) Upsert(key []byte, value uint64) {
	idx.tree.Upsert(key, value)
}

// Find returns the value stored under key, or 0 if absent. The dynamic
// tree is checked first (it holds anything inserted since the last
// Merge); the static tree is consulted only on a dynamic miss.
func (idx *Index) Find(key []byte) uint64 {
	if v := idx.tree.Find(key); v != 0 {
		return v
	}
	if idx.staticRoot != nil {
		return staticFind(idx.staticRoot, key)
	}
	return 0
}

// Erase removes key from the dynamic tree, reporting whether it was
// present there. Erase never touches the static tree: once merged, a key
// can only be shadowed by a later Insert of the same key in the fresh
// dynamic tree (Upsert of such a key is a no-op), not physically removed
// from static storage.
func (idx *Index) Erase(key []byte) bool {
	return idx.tree.Erase(key)
}

// Scan positions a cursor at the smallest key >= key and sums up to rng
// values in byte-lexicographic order. Per the design notes, range
// scanning only covers the dynamic tree: after Merge resets it, Scan sees
// only keys inserted since the last Merge, not the merged static set.
func (idx *Index) Scan(key []byte, rng int) uint64 {
	if rng <= 0 {
		return 0
	}
	c := idx.tree.NewCursor()
	c.LowerBound(key)
	var sum uint64
	for i := 0; i < rng; i++ {
		v, ok := c.Next()
		if !ok {
			break
		}
		sum += v
	}
	return sum
}

// Merge rebuilds the dynamic tree into the static representation (C8).
// It is idempotent: calling it again while a static root already exists
// does nothing. On success, subsequent inserts begin a fresh dynamic
// tree layered on top of the static one (spec.md §9's third open
// question, resolved explicitly here rather than left unspecified).
func (idx *Index) Merge() {
	if idx.staticRoot != nil {
		return
	}
	idx.staticRoot = idx.tree.Merge()
	idx.staticMemory = staticMemoryOf(idx.staticRoot)
	fresh, err := newTree(idx.keyLen, idx.cacheSize)
	if err != nil {
		// cacheSize was already validated in New; this cannot fail.
		panic(err)
	}
	idx.tree = fresh
}

// MemoryBytes returns the accounted size of the live dynamic node
// allocations.
func (idx *Index) MemoryBytes() uint64 { return idx.tree.memory }

// StaticMemoryBytes returns the accounted size of the static tree built
// by the last Merge, or 0 if Merge has not run.
func (idx *Index) StaticMemoryBytes() uint64 { return idx.staticMemory }

// ClassCounts returns the number of live node4/node16/node48/node256
// allocations in the dynamic tree, for callers monitoring adaptive
// grow/shrink behavior.
func (idx *Index) ClassCounts() (node4, node16, node48, node256 uint64) {
	return idx.tree.ClassCounts()
}

const (
	staticHeaderBytes = 8
	ptrSize           = 8
)

// staticMemoryOf sums the per-node allocation sizes spec.md §4.7 step 3
// prescribes: header + prefix + count*(1+ptrsz) for dense nodes, header +
// prefix + 256*ptrsz for full nodes.
func staticMemoryOf(n node) uint64 {
	if n == nil {
		return 0
	}
	switch t := n.(type) {
	case *leaf:
		return 0
	case *staticDense:
		return staticHeaderBytes + uint64(t.count)*(1+ptrSize) + sumStatic(t.children)
	case *staticDenseP:
		return staticHeaderBytes + uint64(len(t.prefix)) + uint64(t.count)*(1+ptrSize) + sumStatic(t.children)
	case *staticFull:
		return staticHeaderBytes + 256*ptrSize + sumStatic(t.children[:])
	case *staticFullP:
		return staticHeaderBytes + uint64(len(t.prefix)) + 256*ptrSize + sumStatic(t.children[:])
	default:
		panic("art: unreachable static node kind")
	}
}

func sumStatic(children []node) uint64 {
	var total uint64
	for _, c := range children {
		total += staticMemoryOf(c)
	}
	return total
}
