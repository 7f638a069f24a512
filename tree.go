// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package art

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrKeyExhausted is returned by Tree.insert (and surfaced through
// Index.Insert) when the residual key at the point of divergence is
// shorter than the depth required to distinguish it from an existing
// leaf. spec.md's source silently dropped the key in this case; this is
// the explicit "duplicate key" outcome the design notes ask for instead.
var ErrKeyExhausted = errors.New("art: key exhausted before divergence")

// Tree is the mutable dynamic-representation ART (C5 mutator, C6 dynamic
// reader). It is not safe for concurrent use; see spec.md §5.
type Tree struct {
	root   node
	keyLen int
	size   uint64
	nextID uint64

	memory      uint64
	class4      uint64
	class16     uint64
	class48     uint64
	class256    uint64
	prefixCache *lru.Cache[uint64, []byte]
}

func newTree(keyLen int, cacheSize int) (*Tree, error) {
	t := &Tree{keyLen: keyLen}
	if cacheSize > 0 {
		c, err := lru.New[uint64, []byte](cacheSize)
		if err != nil {
			return nil, err
		}
		t.prefixCache = c
	}
	return t, nil
}

func (t *Tree) allocID() uint64 {
	t.nextID++
	return t.nextID
}

func copyKey(key []byte) []byte {
	k := make([]byte, len(key))
	copy(k, key)
	return k
}

func (t *Tree) accountAlloc(n innerNode) {
	switch n.kind() {
	case typNode4:
		t.class4++
		t.memory += 4 * 24
	case typNode16:
		t.class16++
		t.memory += 16 * 24
	case typNode48:
		t.class48++
		t.memory += 256 + 48*24
	case typNode256:
		t.class256++
		t.memory += 256 * 24
	}
}

// ClassCounts returns the number of live node4/node16/node48/node256
// allocations in the dynamic tree (spec.md §5's per-class counters).
func (t *Tree) ClassCounts() (node4, node16, node48, node256 uint64) {
	return t.class4, t.class16, t.class48, t.class256
}

func (t *Tree) accountFree(n innerNode) {
	switch n.kind() {
	case typNode4:
		t.class4--
		t.memory -= 4 * 24
	case typNode16:
		t.class16--
		t.memory -= 16 * 24
	case typNode48:
		t.class48--
		t.memory -= 256 + 48*24
	case typNode256:
		t.class256--
		t.memory -= 256 * 24
	}
}

// Insert stores value under key, growing the tree as needed. It reports
// whether the tree changed (spec.md §6: "idempotent on identical
// (key,value)").
func (t *Tree) Insert(key []byte, value uint64) (bool, error) {
	return t.insert(&t.root, key, 0, value)
}

// Upsert replaces the value of an existing leaf without any structural
// change. It is a no-op if key is absent.
func (t *Tree) Upsert(key []byte, value uint64) bool {
	n := t.root
	depth := 0
	for {
		if n == nil {
			return false
		}
		if l, ok := n.(*leaf); ok {
			if !l.matches(key) {
				return false
			}
			l.value = value
			return true
		}
		in := n.(innerNode)
		h := in.hdr()
		if h.prefixLen > 0 {
			if t.prefixMismatch(in, key, depth) != int(h.prefixLen) {
				return false
			}
			depth += int(h.prefixLen)
		}
		if depth >= len(key) {
			return false
		}
		childRef := in.findChild(key[depth])
		if childRef == nil {
			return false
		}
		n = *childRef
		depth++
	}
}

// Find returns the value stored under key, or 0 if absent.
func (t *Tree) Find(key []byte) uint64 {
	n := t.root
	depth := 0
	for {
		if n == nil {
			return 0
		}
		if l, ok := n.(*leaf); ok {
			if l.matches(key) {
				return l.value
			}
			return 0
		}
		in := n.(innerNode)
		h := in.hdr()
		if h.prefixLen > 0 {
			limit := int(h.prefixLen)
			if limit > maxPrefixLen {
				limit = maxPrefixLen
			}
			if checkPrefix(h.prefix[:], limit, key, depth) != limit {
				return 0
			}
			depth += int(h.prefixLen)
		}
		if depth >= len(key) {
			return 0
		}
		childRef := in.findChild(key[depth])
		if childRef == nil {
			return 0
		}
		n = *childRef
		depth++
	}
}

func (t *Tree) insert(r *node, key []byte, depth int, value uint64) (bool, error) {
	if refEmpty(r) {
		*r = &leaf{key: copyKey(key), value: value}
		t.size++
		return true, nil
	}
	if refIsLeaf(r) {
		l := refLeaf(r)
		if l.matches(key) {
			if l.value == value {
				return false, nil
			}
			l.value = value
			return true, nil
		}
		sp := l.prefixLen(key, depth)
		newDepth := depth + sp
		if newDepth >= len(key) || newDepth >= len(l.key) {
			return false, ErrKeyExhausted
		}
		n4 := &node4{}
		n4.id = t.allocID()
		n4.prefixLen = uint32(sp)
		copy(n4.prefix[:], key[depth:depth+min(sp, maxPrefixLen)])
		t.accountAlloc(n4)
		newLeaf := &leaf{key: copyKey(key), value: value}
		n4.addChild(l.key[newDepth], node(l))
		n4.addChild(key[newDepth], node(newLeaf))
		*r = n4
		t.size++
		return true, nil
	}

	in := refInner(r)
	h := in.hdr()
	if h.prefixLen > 0 {
		mismatch := t.prefixMismatch(in, key, depth)
		if mismatch < int(h.prefixLen) {
			newDepth := depth + mismatch
			if newDepth >= len(key) {
				return false, ErrKeyExhausted
			}
			// Save the shared part before splitPrefix shifts h.prefix.
			var shared [maxPrefixLen]byte
			copy(shared[:], h.prefix[:min(mismatch, maxPrefixLen)])
			oldByte, err := t.splitPrefix(in, h, depth, mismatch)
			if err != nil {
				return false, err
			}
			split := &node4{}
			split.id = t.allocID()
			split.prefixLen = uint32(mismatch)
			split.prefix = shared
			t.accountAlloc(split)
			newLeaf := &leaf{key: copyKey(key), value: value}
			split.addChild(oldByte, in.(node))
			split.addChild(key[newDepth], node(newLeaf))
			*r = split
			t.size++
			return true, nil
		}
		depth += int(h.prefixLen)
	}
	if depth >= len(key) {
		return false, ErrKeyExhausted
	}
	childRef := in.findChild(key[depth])
	if childRef == nil || refEmpty(childRef) {
		newLeaf := &leaf{key: copyKey(key), value: value}
		grown, ok := in.addChild(key[depth], node(newLeaf))
		if ok {
			t.accountFree(in)
			t.accountAlloc(grown)
			*r = grown
		}
		t.size++
		return true, nil
	}
	return t.insert(childRef, key, depth+1, value)
}

// splitPrefix shortens n's logical prefix so it starts right after the
// mismatch position, returning the byte that used to follow the shared
// portion (the byte the caller re-homes n under in the new split node4).
// depth is n's depth along the path from the root, before the split (the
// same depth prefixMismatch was called with to find mismatch).
func (t *Tree) splitPrefix(n innerNode, h *header, depth, mismatch int) (byte, error) {
	var oldByte byte
	if int(h.prefixLen) <= maxPrefixLen {
		oldByte = h.prefix[mismatch]
		newLen := h.prefixLen - uint32(mismatch) - 1
		var buf [maxPrefixLen]byte
		copy(buf[:], h.prefix[mismatch+1:h.prefixLen])
		h.prefix = buf
		h.prefixLen = newLen
		return oldByte, nil
	}
	tail := t.recoveredTail(h.id, n, depth)
	if mismatch < maxPrefixLen {
		oldByte = h.prefix[mismatch]
	} else if tail != nil && mismatch-maxPrefixLen < len(tail) {
		oldByte = tail[mismatch-maxPrefixLen]
	} else {
		return 0, errors.New("art: unable to recover prefix byte for split")
	}
	newLen := h.prefixLen - uint32(mismatch) - 1
	var buf [maxPrefixLen]byte
	for i := 0; i < maxPrefixLen && i < int(newLen); i++ {
		pos := mismatch + 1 + i
		if pos < maxPrefixLen {
			buf[i] = h.prefix[pos]
		} else if tail != nil && pos-maxPrefixLen < len(tail) {
			buf[i] = tail[pos-maxPrefixLen]
		}
	}
	h.prefix = buf
	h.prefixLen = newLen
	if t.prefixCache != nil {
		t.prefixCache.Remove(h.id)
	}
	return oldByte, nil
}

// Erase removes key if present, reporting whether anything was removed.
func (t *Tree) Erase(key []byte) bool {
	return t.erase(&t.root, key, 0)
}

func (t *Tree) erase(r *node, key []byte, depth int) bool {
	if refEmpty(r) {
		return false
	}
	if refIsLeaf(r) {
		l := refLeaf(r)
		if !l.matches(key) {
			return false
		}
		*r = nil
		t.size--
		return true
	}
	in := refInner(r)
	h := in.hdr()
	if h.prefixLen > 0 {
		if t.prefixMismatch(in, key, depth) != int(h.prefixLen) {
			return false
		}
		depth += int(h.prefixLen)
	}
	if depth >= len(key) {
		return false
	}
	childRef := in.findChild(key[depth])
	if childRef == nil || refEmpty(childRef) {
		return false
	}
	if !refIsLeaf(childRef) {
		return t.erase(childRef, key, depth+1)
	}
	l := refLeaf(childRef)
	if !l.matches(key) {
		return false
	}
	shrunk, ok := in.removeChild(key[depth])
	t.size--
	if ok {
		t.accountFree(in)
		t.accountAlloc(shrunk)
		*r = shrunk
		return true
	}
	if n4, isN4 := in.(*node4); isN4 {
		if b, child, has := n4.soleChild(); has {
			t.accountFree(in)
			t.collapse(r, b, child)
		}
	}
	return true
}

// collapse replaces a one-way node4 (still held in *r) with its sole
// remaining child, prefixing the child's compressed path with the node4's
// own prefix followed by the byte the node4 used to key it (spec.md §4.5's
// "N4 with count==1 collapses").
func (t *Tree) collapse(r *node, b byte, child node) {
	ci, isInner := child.(innerNode)
	if !isInner {
		*r = child
		return
	}
	ph := (*r).(innerNode).hdr()
	ch := ci.hdr()
	newLen := ph.prefixLen + 1 + ch.prefixLen
	var buf [maxPrefixLen]byte
	n := copy(buf[:], ph.prefix[:min(int(ph.prefixLen), maxPrefixLen)])
	if n < maxPrefixLen {
		buf[n] = b
		n++
	}
	copy(buf[n:], ch.prefix[:min(int(ch.prefixLen), maxPrefixLen)])
	ch.prefix = buf
	ch.prefixLen = newLen
	if t.prefixCache != nil {
		t.prefixCache.Remove(ch.id)
	}
	*r = child
}
