// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package workload generates the synthetic fixed-length key/value corpus
// cmd/artbench drives against the ART index and a comparison B-tree. It
// mirrors original_source/workload.cpp's synthetic key generation, minus
// the PAPI hardware-counter instrumentation the design notes call for
// dropping.
package workload

import (
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// Entry is one generated key/value pair. Key is exactly keyLen bytes (the
// argument to Generate): a
// UUID's 16 bytes, followed by gofakeit-derived filler bytes for any
// length beyond 16.
type Entry struct {
	Key   []byte
	Value uint64
}

// Less orders entries by key in byte-lexicographic order, matching the
// index's own key ordering (used as the comparison B-tree's Less func).
func Less(a, b Entry) bool {
	for i := 0; i < len(a.Key) && i < len(b.Key); i++ {
		if a.Key[i] != b.Key[i] {
			return a.Key[i] < b.Key[i]
		}
	}
	return len(a.Key) < len(b.Key)
}

// Generate builds n unique fixed-length entries. keyLen must be >= 16.
func Generate(n, keyLen int, seed uint64) []Entry {
	faker := gofakeit.New(int64(seed))
	seen := make(map[string]bool, n)
	out := make([]Entry, 0, n)
	for len(out) < n {
		id := uuid.New()
		key := make([]byte, keyLen)
		copy(key, id[:])
		for i := 16; i < keyLen; i++ {
			key[i] = byte(faker.Uint8())
		}
		if seen[string(key)] {
			continue
		}
		seen[string(key)] = true
		out = append(out, Entry{Key: key, Value: uint64(len(out) + 1)})
	}
	return out
}
