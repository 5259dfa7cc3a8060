package strategy

// failedBlock remembers where a losing Order Block trade entered
type failedBlock struct {
	Price float64
	Bar   int
}

// FailedOBMemory is a bounded memory of recently-lost Order Blocks, used to
// reject new candidates that retest a recent loser. Entries age out after
// memoryBars; only entries newer than rejectBars influence rejection.
type FailedOBMemory struct {
	entries    []failedBlock
	memoryBars int
	rejectBars int
}

// NewFailedOBMemory creates an empty memory
func NewFailedOBMemory(memoryBars, rejectBars int) *FailedOBMemory {
	return &FailedOBMemory{
		memoryBars: memoryBars,
		rejectBars: rejectBars,
	}
}

// Record stores a losing trade's entry price
func (m *FailedOBMemory) Record(price float64, bar int) {
	m.entries = append(m.entries, failedBlock{Price: price, Bar: bar})
}

// Prune drops entries older than the memory horizon
func (m *FailedOBMemory) Prune(currentBar int) {
	kept := m.entries[:0]
	for _, e := range m.entries {
		if currentBar-e.Bar <= m.memoryBars {
			kept = append(kept, e)
		}
	}
	m.entries = kept
}

// Rejects reports whether a candidate midpoint lies within halfWidth of a
// failure recorded in the last rejectBars bars.
func (m *FailedOBMemory) Rejects(midpoint, halfWidth float64, currentBar int) bool {
	for _, e := range m.entries {
		if currentBar-e.Bar > m.rejectBars {
			continue
		}
		diff := midpoint - e.Price
		if diff < 0 {
			diff = -diff
		}
		if diff <= halfWidth {
			return true
		}
	}
	return false
}

// Len returns the number of remembered failures
func (m *FailedOBMemory) Len() int {
	return len(m.entries)
}
