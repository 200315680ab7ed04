package scheduler

import (
	"math/rand"
	"testing"
	"time"
)

func TestWindowAllowsOnlyConfiguredHours(t *testing.T) {
	w, invalid := ParseWindow([]string{"12", "20"}, time.UTC)
	if len(invalid) != 0 {
		t.Fatalf("unexpected invalid entries: %v", invalid)
	}
	for h := 0; h < 24; h++ {
		want := h == 12 || h == 20
		if got := w.Allows(h); got != want {
			t.Fatalf("Allows(%d) = %v, want %v", h, got, want)
		}
	}
}

func TestWindowStableUnderReordering(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	entries := []string{"0", "5", "9", "15", "18", "23"}
	base, _ := ParseWindow(entries, time.UTC)

	for i := 0; i < 50; i++ {
		shuffled := append([]string(nil), entries...)
		rnd.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		w, _ := ParseWindow(shuffled, time.UTC)
		for h := 0; h < 24; h++ {
			if w.Allows(h) != base.Allows(h) {
				t.Fatalf("order %v changed result for hour %d", shuffled, h)
			}
		}
	}
}

func TestWindowIgnoresMalformedEntries(t *testing.T) {
	w, invalid := ParseWindow([]string{"15", "abc", "", " 18 ", "24", "-1", "7.5"}, time.UTC)
	if !w.Allows(15) || !w.Allows(18) {
		t.Fatalf("valid hours should match: %v", w.Hours())
	}
	if len(w.Hours()) != 2 {
		t.Fatalf("Hours = %v, want [15 18]", w.Hours())
	}
	if len(invalid) != 5 {
		t.Fatalf("invalid = %q, want 5 entries", invalid)
	}
}

func TestWindowEmptyNeverAllows(t *testing.T) {
	w, _ := ParseWindow(nil, time.UTC)
	for h := 0; h < 24; h++ {
		if w.Allows(h) {
			t.Fatalf("empty window allowed hour %d", h)
		}
	}
}

func TestWindowAllowsAtUsesLocation(t *testing.T) {
	msk := time.FixedZone("UTC+3", 3*3600)
	w := NewWindow(msk, 15)

	// 12:00 UTC == 15:00 UTC+3
	if !w.AllowsAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("12:00 UTC should be 15:00 in UTC+3")
	}
	if w.AllowsAt(time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("15:00 UTC is 18:00 in UTC+3")
	}
	if w.HourAt(time.Date(2024, 1, 1, 22, 30, 0, 0, time.UTC)) != 1 {
		t.Fatalf("hour should wrap past midnight")
	}
}
