// Package plan partitions a search result set into export ranges.
package plan

import (
	"fmt"

	errs "wosexport/pkg/errors"
)

// DefaultCapacity is the largest number of records the site exports at once.
const DefaultCapacity = 500

// Range is a 1-based, inclusive block of record positions.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Size returns the number of records in the range.
func (r Range) Size() int {
	return r.End - r.Start + 1
}

// String renders the range as "start-end".
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Valid reports whether the bounds describe a non-empty range.
func (r Range) Valid() bool {
	return r.Start >= 1 && r.End >= r.Start
}

// Plan splits [1, total] into consecutive ranges of at most capacity
// records. A total of zero yields an empty plan.
func Plan(total, capacity int) ([]Range, error) {
	return Window(1, 0, total, capacity)
}

// Window plans [start, end] clamped to total. An end of zero means the last
// record; an end past total is clamped. A start past the effective end
// yields an empty plan.
func Window(start, end, total, capacity int) ([]Range, error) {
	if capacity <= 0 {
		return nil, errs.Validation("plan", "capacity must be positive, got %d", capacity)
	}
	if total < 0 {
		return nil, errs.Validation("plan", "total must not be negative, got %d", total)
	}
	if start < 1 {
		return nil, errs.Validation("plan", "start must be at least 1, got %d", start)
	}
	if end < 0 {
		return nil, errs.Validation("plan", "end must not be negative, got %d", end)
	}

	if end == 0 || end > total {
		end = total
	}
	if start > end {
		return []Range{}, nil
	}

	ranges := make([]Range, 0, (end-start)/capacity+1)
	for lo := start; lo <= end; lo += capacity {
		hi := lo + capacity - 1
		if hi > end {
			hi = end
		}
		ranges = append(ranges, Range{Start: lo, End: hi})
	}
	return ranges, nil
}

// Index returns the position of r in ranges, or -1.
func Index(ranges []Range, r Range) int {
	for i, candidate := range ranges {
		if candidate == r {
			return i
		}
	}
	return -1
}

// Records sums the sizes of ranges.
func Records(ranges []Range) int {
	n := 0
	for _, r := range ranges {
		n += r.Size()
	}
	return n
}
