// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

// Splits observation locations into records (groups sharing a grouping key).

package goobserr

import (
	"golang.org/x/exp/slices"
)

// Record is a set of locations sharing the same grouping key (e.g. one profile)
type Record struct {
	Key  int   // Grouping key assigned by the obs space
	Locs []int // Locations in the record, in their original order
}

// PartitionRecords groups the locations 0..len(keys)-1 by their key.
// Records are returned in ascending key order and every location belongs to exactly one record.
func PartitionRecords(keys []int) []Record {
	locs := map[int][]int{}
	for loc, k := range keys {
		locs[k] = append(locs[k], loc)
	}
	ks := make([]int, 0, len(locs))
	for k := range locs {
		ks = append(ks, k)
	}
	slices.Sort(ks)
	recs := make([]Record, len(ks))
	for i, k := range ks {
		recs[i] = Record{Key: k, Locs: locs[k]}
	}
	return recs
}
