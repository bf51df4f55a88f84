package taxonomy

import "sync"

// Ledger collects resolution failures grouped by kind.
// Entries keep insertion order within a kind and are never deduplicated, so
// identical failures from different rows each appear in the report.
type Ledger struct {
	mu      sync.Mutex
	buckets [numFailureKinds][]string
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record appends a message to the kind's bucket.
func (l *Ledger) Record(kind FailureKind, message string) {
	if !kind.valid() {
		return
	}
	l.mu.Lock()
	l.buckets[kind] = append(l.buckets[kind], message)
	l.mu.Unlock()
}

// All returns a snapshot of every non-empty bucket.
func (l *Ledger) All() map[FailureKind][]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[FailureKind][]string)
	for kind, msgs := range l.buckets {
		if len(msgs) == 0 {
			continue
		}
		out[FailureKind(kind)] = append([]string(nil), msgs...)
	}
	return out
}

// ByKind returns a snapshot of one bucket.
func (l *Ledger) ByKind(kind FailureKind) []string {
	if !kind.valid() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.buckets[kind]...)
}

// HasAny reports whether any bucket holds an entry.
func (l *Ledger) HasAny() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msgs := range l.buckets {
		if len(msgs) > 0 {
			return true
		}
	}
	return false
}

// Count returns the total number of entries across all kinds.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, msgs := range l.buckets {
		n += len(msgs)
	}
	return n
}

// Clear empties every bucket.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.buckets = [numFailureKinds][]string{}
	l.mu.Unlock()
}
