package scheduling

import (
	"testing"
	"time"
)

func TestSlotDuration(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	slot := AvailabilitySlot{StartTime: start, EndTime: start.Add(45 * time.Minute)}

	if slot.Duration() != 45*time.Minute {
		t.Errorf("Duration = %s, want 45m", slot.Duration())
	}
	if slot.DurationMinutes() != 45 {
		t.Errorf("DurationMinutes = %d, want 45", slot.DurationMinutes())
	}
}

func TestSlotIsPast(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	slot := AvailabilitySlot{StartTime: start, EndTime: start.Add(time.Hour)}

	if slot.IsPast(start.Add(-time.Minute)) {
		t.Error("slot starting in a minute must not be past")
	}
	if slot.IsPast(start) {
		t.Error("slot starting exactly now must not be past")
	}
	if !slot.IsPast(start.Add(time.Minute)) {
		t.Error("slot started a minute ago must be past")
	}
}
