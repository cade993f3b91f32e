package lifecycle

import "time"

// TransitionRecord is one entry of the machine's diagnostic history. A
// rejected attempt is recorded with From == To and Rejected set, so tests
// can assert "no-op on invalid event".
type TransitionRecord struct {
	From     State     `json:"from"`
	To       State     `json:"to"`
	Event    Event     `json:"event"`
	At       time.Time `json:"at"`
	Rejected bool      `json:"rejected,omitempty"`
}

// historyRing is a bounded append-only record of transitions. Capping is
// memory hygiene only; correctness never depends on history depth.
type historyRing struct {
	records []TransitionRecord
	next    int
	full    bool
}

func newHistoryRing(capacity int) *historyRing {
	if capacity <= 0 {
		capacity = defaultHistoryLimit
	}
	return &historyRing{records: make([]TransitionRecord, capacity)}
}

func (h *historyRing) append(rec TransitionRecord) {
	h.records[h.next] = rec
	h.next++
	if h.next == len(h.records) {
		h.next = 0
		h.full = true
	}
}

func (h *historyRing) len() int {
	if h.full {
		return len(h.records)
	}
	return h.next
}

// snapshot returns the retained records oldest first.
func (h *historyRing) snapshot() []TransitionRecord {
	if !h.full {
		out := make([]TransitionRecord, h.next)
		copy(out, h.records[:h.next])
		return out
	}
	out := make([]TransitionRecord, 0, len(h.records))
	out = append(out, h.records[h.next:]...)
	out = append(out, h.records[:h.next]...)
	return out
}

// tail returns at most n of the newest records, oldest first.
func (h *historyRing) tail(n int) []TransitionRecord {
	all := h.snapshot()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
