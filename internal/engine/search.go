package engine

import "sort"

// nextHit returns the first hit after cursor, wrapping to the first hit.
func nextHit(hits []int, cursor int) (int, bool) {
	if len(hits) == 0 {
		return 0, false
	}
	i := sort.SearchInts(hits, cursor+1)
	if i == len(hits) {
		i = 0
	}
	return hits[i], true
}

// prevHit returns the last hit before cursor, wrapping to the last hit.
func prevHit(hits []int, cursor int) (int, bool) {
	if len(hits) == 0 {
		return 0, false
	}
	i := sort.SearchInts(hits, cursor) - 1
	if i < 0 || cursor < 0 {
		i = len(hits) - 1
	}
	return hits[i], true
}
