package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "wosexport/pkg/errors"
)

func TestPlanExamples(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		capacity int
		want     []Range
	}{
		{"uneven tail", 250, 100, []Range{{1, 100}, {101, 200}, {201, 250}}},
		{"exact fit", 1000, 500, []Range{{1, 500}, {501, 1000}}},
		{"single short range", 42, 500, []Range{{1, 42}}},
		{"one record", 1, 500, []Range{{1, 1}}},
		{"capacity one", 3, 1, []Range{{1, 1}, {2, 2}, {3, 3}}},
		{"empty", 0, 500, []Range{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(tt.total, tt.capacity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanProperties(t *testing.T) {
	for _, capacity := range []int{1, 7, 100, 500} {
		for _, total := range []int{0, 1, 6, 7, 8, 99, 100, 101, 499, 500, 501, 1234, 10007} {
			ranges, err := Plan(total, capacity)
			require.NoError(t, err)

			if total == 0 {
				assert.Empty(t, ranges)
				continue
			}
			require.NotEmpty(t, ranges)

			// Starts at 1 and ends at total
			assert.Equal(t, 1, ranges[0].Start)
			assert.Equal(t, total, ranges[len(ranges)-1].End)

			for i, r := range ranges {
				assert.True(t, r.Valid(), "range %v invalid", r)
				assert.LessOrEqual(t, r.Size(), capacity)
				if i > 0 {
					// Contiguous, disjoint and ascending
					assert.Equal(t, ranges[i-1].End+1, r.Start)
				}
				if i < len(ranges)-1 {
					assert.Equal(t, capacity, r.Size(), "only the last range may be short")
				}
			}
			assert.Equal(t, total, Records(ranges))

			again, _ := Plan(total, capacity)
			assert.Equal(t, ranges, again, "planning must be deterministic")
		}
	}
}

func TestPlanRejectsInvalidInput(t *testing.T) {
	_, err := Plan(100, 0)
	assert.True(t, errs.IsType(err, errs.ErrorTypeValidation))

	_, err = Plan(100, -5)
	assert.True(t, errs.IsType(err, errs.ErrorTypeValidation))

	_, err = Plan(-1, 500)
	assert.True(t, errs.IsType(err, errs.ErrorTypeValidation))
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name              string
		start, end, total int
		want              []Range
	}{
		{"to the end", 501, 0, 1200, []Range{{501, 1000}, {1001, 1200}}},
		{"clamped end", 1, 5000, 700, []Range{{1, 500}, {501, 700}}},
		{"inner window", 100, 650, 2000, []Range{{100, 599}, {600, 650}}},
		{"start past total", 900, 0, 800, []Range{}},
		{"start past end", 50, 10, 800, []Range{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Window(tt.start, tt.end, tt.total, 500)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Window(0, 10, 100, 500)
	assert.Error(t, err)
	_, err = Window(1, -1, 100, 500)
	assert.Error(t, err)
}

func TestIndexAndString(t *testing.T) {
	ranges, _ := Plan(1200, 500)
	assert.Equal(t, 1, Index(ranges, Range{501, 1000}))
	assert.Equal(t, -1, Index(ranges, Range{500, 999}))
	assert.Equal(t, "1001-1200", ranges[2].String())
	assert.Equal(t, 200, ranges[2].Size())
}
