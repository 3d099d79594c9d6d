package processor

import (
	"cmp"
	"maps"
	"slices"
	"strconv"
)

// sortedKeys orders node ids numerically, so "10" follows "9". Non-numeric
// ids sort lexically after the numeric ones.
func sortedKeys[V any](m map[string]V) []string {
	return slices.SortedFunc(maps.Keys(m), compareNodeIDs)
}

func compareNodeIDs(a, b string) int {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(ai, bi)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
