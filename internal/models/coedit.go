package models

import "sort"

// CoeditEntry is one neighbor in a user's ranked co-edit list. Overlap is
// the number of distinct pages both users are known to have edited.
type CoeditEntry struct {
	Neighbor string `json:"neighbor"`
	Overlap  int    `json:"overlap"`
}

// MergeNeighbors folds newly discovered overlaps into an existing neighbor
// list, re-ranks and truncates it. Existing entries are incremented, unseen
// neighbors appended, so merging {A:2} then {A:3} equals merging {A:5} once.
// pageCount supplies each neighbor's total distinct-page count for
// tie-breaking. The input slice is not modified.
func MergeNeighbors(entries []CoeditEntry, discoveries map[string]int, pageCount func(string) int, bound int) []CoeditEntry {
	rest := make(map[string]int, len(discoveries))
	for n, c := range discoveries {
		rest[n] = c
	}

	merged := make([]CoeditEntry, 0, len(entries)+len(rest))
	for _, e := range entries {
		if add, ok := rest[e.Neighbor]; ok {
			e.Overlap += add
			delete(rest, e.Neighbor)
		}
		merged = append(merged, e)
	}
	for n, c := range rest {
		merged = append(merged, CoeditEntry{Neighbor: n, Overlap: c})
	}

	rankNeighbors(merged, pageCount)
	return truncateNeighbors(merged, bound)
}

// rankNeighbors sorts by overlap descending; ties go to the more prolific
// editor (page count descending), favoring disambiguation signal over pure
// overlap. Handle ascending as the final key keeps re-ranking reproducible.
func rankNeighbors(entries []CoeditEntry, pageCount func(string) int) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Overlap != b.Overlap {
			return a.Overlap > b.Overlap
		}
		pa, pb := pageCount(a.Neighbor), pageCount(b.Neighbor)
		if pa != pb {
			return pa > pb
		}
		return a.Neighbor < b.Neighbor
	})
}

// truncateNeighbors cuts a sorted list at bound without splitting the
// trailing run of overlap==1 entries. Overlap counts are at least 1, so
// after the descending sort that run is always the tail: if it straddles or
// starts at the bound it is dropped whole, otherwise the plain cut applies.
// When every entry is part of the run the plain cut applies too, since
// dropping the whole list would permanently discard all accumulated signal.
// Entries below the cut are discarded permanently.
func truncateNeighbors(entries []CoeditEntry, bound int) []CoeditEntry {
	if bound <= 0 || len(entries) <= bound {
		return entries
	}
	cut := bound
	if entries[cut].Overlap == 1 {
		for cut > 0 && entries[cut-1].Overlap == 1 {
			cut--
		}
		if cut == 0 {
			cut = bound
		}
	}
	return entries[:cut:cut]
}
