package services

import (
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2030, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestRangesOverlapHalfOpen(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int
		want                       bool
	}{
		{"identical", 10, 13, 10, 13, true},
		{"second starts inside first", 10, 13, 12, 15, true},
		{"second ends inside first", 10, 13, 8, 11, true},
		{"second contains first", 10, 13, 9, 14, true},
		{"checkout equals checkin", 10, 13, 13, 16, false},
		{"checkin equals checkout", 13, 16, 10, 13, false},
		{"fully before", 10, 13, 14, 16, false},
		{"fully after", 14, 16, 10, 13, false},
		{"single night inside", 10, 13, 11, 12, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RangesOverlap(day(tc.aStart), day(tc.aEnd), day(tc.bStart), day(tc.bEnd))
			if got != tc.want {
				t.Errorf("RangesOverlap([%d,%d), [%d,%d)) = %v, want %v",
					tc.aStart, tc.aEnd, tc.bStart, tc.bEnd, got, tc.want)
			}
		})
	}
}
