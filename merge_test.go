// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package art

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMerge_EquivalentToPreMergeTree(t *testing.T) {
	tr, err := newTree(16, 128)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	model := map[string]uint64{}
	for len(model) < 500 {
		k := make([]byte, 16)
		rng.Read(k)
		v := rng.Uint64()
		if v == 0 {
			v = 1
		}
		if _, err := tr.Insert(k, v); err == nil {
			model[string(k)] = v
		}
	}

	root := tr.Merge()
	require.NotNil(t, root)

	for k, v := range model {
		require.Equal(t, v, staticFind(root, []byte(k)))
	}

	miss := make([]byte, 16)
	rng.Read(miss)
	if _, present := model[string(miss)]; !present {
		require.Equal(t, uint64(0), staticFind(root, miss))
	}
}

func TestMerge_EmptyTree(t *testing.T) {
	tr, err := newTree(4, 0)
	require.NoError(t, err)
	require.Nil(t, tr.Merge())
}

func TestMerge_SingleLeaf(t *testing.T) {
	tr, err := newTree(3, 0)
	require.NoError(t, err)
	_, err = tr.Insert([]byte{9, 9, 9}, 55)
	require.NoError(t, err)

	root := tr.Merge()
	require.Equal(t, uint64(55), staticFind(root, []byte{9, 9, 9}))
}

func TestMerge_DoesNotMutateDynamicTree(t *testing.T) {
	tr, err := newTree(2, 0)
	require.NoError(t, err)
	_, err = tr.Insert([]byte{1, 1}, 1)
	require.NoError(t, err)
	_, err = tr.Insert([]byte{1, 2}, 2)
	require.NoError(t, err)

	before := tr.size
	tr.Merge()
	require.Equal(t, before, tr.size)
	require.Equal(t, uint64(1), tr.Find([]byte{1, 1}))
	require.Equal(t, uint64(2), tr.Find([]byte{1, 2}))
}

// TestMerge_DeepPrefixBelowRoot covers a node whose logical prefix is
// longer than maxPrefixLen and which itself sits below the root (depth>0),
// so recovering the tail bytes beyond the inline window must account for
// the node's own depth, not just the leaf's absolute key offset.
func TestMerge_DeepPrefixBelowRoot(t *testing.T) {
	tr, err := newTree(60, 0)
	require.NoError(t, err)

	base := make([]byte, 60)
	for i := range base {
		base[i] = byte(i)
	}

	a := append([]byte{}, base...)
	b := append([]byte{}, base...)
	b[0] = 0xFF // diverges at depth 0, forcing a root node4

	c := append([]byte{}, base...)
	c[40] = 0xFF // shares a's byte 0, diverges deep inside the child's
	// prefix window (a node4 at depth 1 with prefixLen 39)

	d := append([]byte{}, base...)
	d[20] = 0xFF // diverges within that same deep prefix, past
	// maxPrefixLen relative to the node's own depth but not relative
	// to the leaf's absolute offset

	_, err = tr.Insert(a, 1)
	require.NoError(t, err)
	_, err = tr.Insert(b, 2)
	require.NoError(t, err)
	_, err = tr.Insert(c, 3)
	require.NoError(t, err)
	_, err = tr.Insert(d, 4)
	require.NoError(t, err)

	require.Equal(t, uint64(1), tr.Find(a))
	require.Equal(t, uint64(2), tr.Find(b))
	require.Equal(t, uint64(3), tr.Find(c))
	require.Equal(t, uint64(4), tr.Find(d))

	root := tr.Merge()
	require.Equal(t, uint64(1), staticFind(root, a))
	require.Equal(t, uint64(2), staticFind(root, b))
	require.Equal(t, uint64(3), staticFind(root, c))
	require.Equal(t, uint64(4), staticFind(root, d))

	miss := append([]byte{}, base...)
	miss[55] = 0xFE
	require.Equal(t, uint64(0), tr.Find(miss))
	require.Equal(t, uint64(0), staticFind(root, miss))
}

func TestMerge_WideFanoutPicksFullNode(t *testing.T) {
	tr, err := newTree(2, 0)
	require.NoError(t, err)

	for i := 0; i < 250; i++ {
		_, err := tr.Insert([]byte{0, byte(i)}, uint64(i+1))
		require.NoError(t, err)
	}
	root := tr.Merge()
	switch root.(type) {
	case *staticFull, *staticFullP:
	default:
		t.Fatalf("expected a full-fanout static node above denseThreshold, got %T", root)
	}
	for i := 0; i < 250; i++ {
		require.Equal(t, uint64(i+1), staticFind(root, []byte{0, byte(i)}))
	}
}
