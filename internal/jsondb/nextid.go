package jsondb

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// NextID allocates the next identifier in a numeric, zero-padded id space.
//
// It scans every id the sequence yields, parses the numeric value and
// returns max+1 left-padded to width digits. Non-numeric ids are ignored.
// An empty sequence allocates "0…01". The scan is O(total records), which
// is acceptable at single-document scale; callers must run it inside
// [Doc.Mutate] so that scan-then-increment is observed by one writer at a
// time, otherwise two allocators can hand out the same id.
//
// Values wider than width are preserved: the width is a display
// convention, not a capacity limit.
func NextID(width int, ids iter.Seq[string]) string {
	maxID := 0
	for s := range ids {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			continue
		}
		if n > maxID {
			maxID = n
		}
	}
	return fmt.Sprintf("%0*d", width, maxID+1)
}
