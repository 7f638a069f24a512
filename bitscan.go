// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package art

import "github.com/hideo55/go-popcount"

// maskEq16 builds a lane-match bitmask the way a 16-wide SIMD pcmpeqb
// would: bit i is set iff keys[i] equals target, for i < n. find_child on
// node16/ND/NDP resolves this into "the first matching lane" without a
// data-dependent branch per lane.
func maskEq16(keys *[16]byte, n int, target byte) uint32 {
	var mask uint32
	for i := 0; i < n; i++ {
		if keys[i] == target {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// firstSetBit returns the index of the lowest set bit in mask, or -1 if
// mask is zero. It isolates the lowest set bit and resolves its index via
// popcount of everything below it, rather than a trailing-zeros intrinsic,
// matching the "resolve the SIMD mask via a bit-count" framing used by the
// packed-bitmap child-index structures elsewhere in the retrieval pack.
func firstSetBit(mask uint32) int {
	if mask == 0 {
		return -1
	}
	lowest := mask & (^mask + 1)
	return int(popcount.Count(uint64(lowest - 1)))
}
