package strategy

import "testing"

func TestFailedOBMemoryRejectsNearbyRetest(t *testing.T) {
	m := NewFailedOBMemory(50, 20)
	m.Record(101.5, 100)

	// Midpoint within half-width of the failure, inside the window
	if !m.Rejects(102.0, 1.0, 110) {
		t.Error("retest within half-width of a recent failure should be rejected")
	}
	// Outside the proximity band
	if m.Rejects(103.0, 1.0, 110) {
		t.Error("distant candidate should pass")
	}
	// Same price but the rejection window has lapsed
	if m.Rejects(101.5, 1.0, 121) {
		t.Error("failure older than the rejection window should not reject")
	}
}

func TestFailedOBMemoryPrune(t *testing.T) {
	m := NewFailedOBMemory(50, 20)
	m.Record(100, 10)
	m.Record(200, 40)

	m.Prune(60)
	if m.Len() != 2 {
		t.Fatalf("len after prune at bar 60 = %d, want 2", m.Len())
	}

	// bar 10 is now 51 bars old, past the 50-bar horizon
	m.Prune(61)
	if m.Len() != 1 {
		t.Fatalf("len after prune at bar 61 = %d, want 1", m.Len())
	}
	if m.Rejects(100, 1.0, 61) {
		t.Error("pruned entry must not reject")
	}
}
