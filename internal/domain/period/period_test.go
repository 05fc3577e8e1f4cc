package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

func TestNew(t *testing.T) {
	_, err := New(day(5), day(5))
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = New(day(5), day(1))
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = New(time.Time{}, day(1))
	require.ErrorIs(t, err, ErrInvalidRange)

	r, err := New(day(1), day(8))
	require.NoError(t, err)
	assert.Equal(t, 7, r.Days())
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{"disjoint", Range{day(1), day(3)}, Range{day(4), day(6)}, false},
		{"touching end to start", Range{day(1), day(5)}, Range{day(5), day(10)}, false},
		{"partial", Range{day(1), day(5)}, Range{day(3), day(10)}, true},
		{"contained", Range{day(1), day(10)}, Range{day(3), day(4)}, true},
		{"identical", Range{day(2), day(3)}, Range{day(2), day(3)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestDays_PartialDayRoundsUp(t *testing.T) {
	r := Range{Start: day(1), End: day(1).Add(25 * time.Hour)}
	assert.Equal(t, 2, r.Days())

	r = Range{Start: day(1), End: day(1).Add(3 * time.Hour)}
	assert.Equal(t, 1, r.Days())
}

func TestContains(t *testing.T) {
	r := Range{Start: day(1), End: day(3)}
	assert.True(t, r.Contains(day(1)))
	assert.True(t, r.Contains(day(2)))
	assert.False(t, r.Contains(day(3)))
}
