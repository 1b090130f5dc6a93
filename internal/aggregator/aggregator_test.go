package aggregator

import (
	"testing"
	"time"
)

func TestNextWindow_FirstRunUsesInitialLookback(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	from, to, ok := nextWindow(time.Time{}, now)
	if !ok {
		t.Fatal("expected a window on first run")
	}
	if !from.Equal(now.Add(-initialLookback)) {
		t.Errorf("expected from=%v, got %v", now.Add(-initialLookback), from)
	}
	if !to.Equal(now) {
		t.Errorf("expected to=%v, got %v", now, to)
	}
}

func TestNextWindow_TruncatesToMinute(t *testing.T) {
	last := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	now := time.Date(2026, 1, 2, 3, 5, 42, 0, time.UTC)
	_, to, ok := nextWindow(last, now)
	if !ok {
		t.Fatal("expected a window")
	}
	if !to.Equal(time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)) {
		t.Errorf("expected to truncated to the minute, got %v", to)
	}
}

func TestNextWindow_NoOpWithinSameMinute(t *testing.T) {
	last := time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)
	now := time.Date(2026, 1, 2, 3, 5, 30, 0, time.UTC)
	_, _, ok := nextWindow(last, now)
	if ok {
		t.Error("expected no window within the same minute boundary")
	}
}
