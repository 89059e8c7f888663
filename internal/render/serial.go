// Package render implements the deterministic model → resolver-config
// rendering of spec §4.4 (C4 Resolver Renderer). Every function here is
// pure: the same snapshot always produces byte-identical output
// (spec §8 invariant 10).
package render

import (
	"fmt"
	"time"
)

// dailyFloor returns the YYYYMMDD00 serial floor for the given date
// (spec §4.4 "Serial discipline").
func dailyFloor(today time.Time) uint32 {
	return uint32(today.Year())*1000000 + uint32(today.Month())*10000 + uint32(today.Day())*100
}

// NextSerial computes the new serial for a zone (or RPZ category) whose
// rendered content changed: max(prior+1, YYYYMMDDNN_today_base), and it is
// guaranteed to strictly exceed prior (spec §4.4, §8 invariant 2).
func NextSerial(prior uint32, today time.Time) uint32 {
	floor := dailyFloor(today)
	next := prior + 1
	if floor > next {
		next = floor
	}
	if next <= prior {
		// prior already exceeds today's 32-bit range ceiling; fall back to
		// a plain increment so the strictly-greater invariant always holds.
		next = prior + 1
	}
	return next
}

// FormatSerial renders a serial for inclusion in zone file text.
func FormatSerial(serial uint32) string {
	return fmt.Sprintf("%d", serial)
}
