package render

import (
	"testing"
	"time"
)

func TestNextSerial_StrictlyGreater(t *testing.T) {
	today := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		prior uint32
	}{
		{"well below today's floor", 2024010101},
		{"exactly today's floor", 2026080100},
		{"above today's floor", 2026080199},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next := NextSerial(tc.prior, today)
			if next <= tc.prior {
				t.Errorf("NextSerial(%d) = %d, want > %d", tc.prior, next, tc.prior)
			}
			floor := dailyFloor(today)
			if next < floor && tc.prior < floor {
				t.Errorf("NextSerial(%d) = %d, want >= floor %d", tc.prior, next, floor)
			}
		})
	}
}

func TestNextSerial_Deterministic(t *testing.T) {
	today := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	a := NextSerial(2024010100, today)
	b := NextSerial(2024010100, today)
	if a != b {
		t.Errorf("NextSerial is not deterministic: %d != %d", a, b)
	}
}
