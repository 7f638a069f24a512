// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Command artbench drives the hybrid ART index (C9) and a tidwall/btree
// B-tree side by side over the same random workload, reporting how long
// each spends inserting, finding, and range-scanning (C12 from the design
// notes).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tidwall/btree"
	"golang.org/x/exp/slices"

	"github.com/flowbase/hart"
	"github.com/flowbase/hart/workload"
)

type timing struct {
	label string
	d     time.Duration
}

func timed(label string, fn func()) timing {
	start := time.Now()
	fn()
	return timing{label: label, d: time.Since(start)}
}

func runART(entries []workload.Entry, scanFrom int, scanRange int) []timing {
	idx, err := art.New(len(entries[0].Key))
	if err != nil {
		log.Fatalf("art.New: %v", err)
	}
	var results []timing
	results = append(results, timed("art insert", func() {
		for _, e := range entries {
			if _, err := idx.Insert(e.Key, e.Value); err != nil {
				log.Fatalf("art insert: %v", err)
			}
		}
	}))
	results = append(results, timed("art find", func() {
		for _, e := range entries {
			idx.Find(e.Key)
		}
	}))
	results = append(results, timed("art scan", func() {
		idx.Scan(entries[scanFrom].Key, scanRange)
	}))
	results = append(results, timed("art merge", func() {
		idx.Merge()
	}))
	results = append(results, timed("art find (static)", func() {
		for _, e := range entries {
			idx.Find(e.Key)
		}
	}))
	return results
}

func runBTree(entries []workload.Entry, scanFrom int, scanRange int) []timing {
	tr := btree.NewBTreeG(workload.Less)
	var results []timing
	results = append(results, timed("btree insert", func() {
		for _, e := range entries {
			tr.Set(e)
		}
	}))
	results = append(results, timed("btree find", func() {
		for _, e := range entries {
			tr.Get(e)
		}
	}))
	results = append(results, timed("btree scan", func() {
		count := 0
		tr.Ascend(entries[scanFrom], func(item workload.Entry) bool {
			count++
			return count < scanRange
		})
	}))
	return results
}

func main() {
	n := flag.Int("n", 50000, "number of keys in the workload")
	keyLen := flag.Int("keylen", 24, "fixed key length in bytes (>=16)")
	scanRange := flag.Int("scanrange", 100, "number of entries to visit per range scan")
	seed := flag.Uint64("seed", 42, "gofakeit seed for the workload's filler bytes")
	flag.Parse()

	if *keyLen < 16 {
		fmt.Fprintln(os.Stderr, "artbench: -keylen must be >= 16 (a UUID occupies the first 16 bytes)")
		os.Exit(1)
	}

	entries := workload.Generate(*n, *keyLen, *seed)
	sorted := append([]workload.Entry(nil), entries...)
	slices.SortFunc(sorted, func(a, b workload.Entry) int {
		switch {
		case workload.Less(a, b):
			return -1
		case workload.Less(b, a):
			return 1
		default:
			return 0
		}
	})
	scanFrom := len(sorted) / 2

	all := append(runART(entries, scanFrom, *scanRange), runBTree(entries, scanFrom, *scanRange)...)
	for _, r := range all {
		fmt.Printf("%-20s %v\n", r.label, r.d)
	}
}
