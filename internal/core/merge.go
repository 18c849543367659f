package core

import "sort"

// MergeTransactions combines the latest snapshot of every transaction source
// into one list ordered by date (newest first) then id. Records keep their
// source kind; duplicates across sources are kept and summed independently.
func MergeTransactions(sources ...[]Transaction) []Transaction {
	n := 0
	for _, src := range sources {
		n += len(src)
	}
	out := make([]Transaction, 0, n)
	for _, src := range sources {
		out = append(out, src...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out
}
