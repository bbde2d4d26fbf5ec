package ledger

import "sync"

// Ledger is the process-lifetime set of order ids already alerted on.
// Entries are never removed: an order that keeps failing is reported once,
// and an order that later completes through some other path is never
// re-alerted. A restart is the only reset.
type Ledger struct {
	mu       sync.Mutex
	reported map[string]struct{}
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{reported: make(map[string]struct{})}
}

// ReportIfNew inserts id if absent and reports whether an alert should be
// sent. All alerting must route through this method.
func (l *Ledger) ReportIfNew(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.reported[id]; ok {
		return false
	}
	l.reported[id] = struct{}{}
	return true
}

// Len reports how many ids have been alerted on so far.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reported)
}
