package engine

import "testing"

func TestAllocateTimeClamps(t *testing.T) {
	tm := NewTimeManager(DefaultTimeConfig())

	// Tiny clock: floor at the minimum think time.
	if got := tm.AllocateTimeMs(50, 0, 30, 0); got != 10 {
		t.Errorf("minimum clamp: got %d, want 10", got)
	}

	// Huge clock: ceiling at the maximum think time.
	if got := tm.AllocateTimeMs(10_000_000, 0, 30, 0); got != 2000 {
		t.Errorf("maximum clamp: got %d, want 2000", got)
	}
}

func TestAllocateTimePhaseBoost(t *testing.T) {
	tm := NewTimeManager(DefaultTimeConfig())
	remaining := 30000

	early := tm.AllocateTimeMs(remaining, 0, 10, 0)
	middle := tm.AllocateTimeMs(remaining, 0, 30, 0)
	late := tm.AllocateTimeMs(remaining, 0, 70, 0)

	// base 0.04 * 30000 = 1200ms, boosted to 1440 early, cut to 960 late.
	// The remaining/30 = 1000ms ceiling caps both early and middle at 1000;
	// only the late allocation of 960 stays under it.
	if early < middle || middle < late {
		t.Errorf("phase boost ordering violated: early=%d middle=%d late=%d", early, middle, late)
	}
	if late >= middle {
		t.Errorf("late-game allocation should shrink: middle=%d late=%d", middle, late)
	}
}

func TestAllocateTimeMovesToGoCeiling(t *testing.T) {
	tm := NewTimeManager(DefaultTimeConfig())

	// With 40 moves to go the even split binds before the base fraction.
	remaining := 100000
	got := tm.AllocateTimeMs(remaining, 0, 30, 40)
	if got != 2000 {
		// remaining/40 = 2500, base = 4000 -> capped at 2500, then clamped
		// to the 2000ms maximum.
		t.Errorf("ceiling allocation: got %d, want 2000", got)
	}

	// MovesToGo below 30 behaves as 30.
	small := tm.AllocateTimeMs(3000, 0, 30, 2)
	if small != 100 {
		// base = 120, ceiling 3000/30 = 100.
		t.Errorf("moves-to-go floor: got %d, want 100", small)
	}
}

func TestAllocateTimeIncrement(t *testing.T) {
	tm := NewTimeManager(DefaultTimeConfig())

	// Late game so the base allocation sits below the even-split ceiling.
	without := tm.AllocateTimeMs(30000, 0, 70, 0)
	with := tm.AllocateTimeMs(30000, 1000, 70, 0)
	if with <= without {
		t.Errorf("increment should raise the allocation: %d vs %d", with, without)
	}
}
