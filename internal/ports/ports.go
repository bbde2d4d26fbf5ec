package ports

import (
	"context"
	"time"

	"orderwatch/internal/domain"
)

// OrderSource opens authenticated sessions against the remote order system.
type OrderSource interface {
	Open(ctx context.Context) (SourceSession, error)
}

// SourceSession is one authenticated browsing session, scoped to a single
// reconciliation cycle. Callers must Close it on every exit path.
type SourceSession interface {
	// ListProcessing returns the current snapshot of orders in the target
	// status. Zero candidates is an empty slice, not an error.
	ListProcessing(ctx context.Context) ([]domain.Candidate, error)

	// FetchDetail returns the case-normalized textual content of an
	// order's detail view.
	FetchDetail(ctx context.Context, ref string) (string, error)

	// AttemptComplete locates and invokes the completion control. Returns
	// ActionUnavailable with a nil error when no control is present.
	AttemptComplete(ctx context.Context, ref string) (domain.ActionResult, error)

	Close() error
}

// Ledger is the single authority for "have we already alerted on this order".
type Ledger interface {
	ReportIfNew(id string) bool
}

// Notifier delivers a text alert to the fixed destination. Best-effort.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Scheduler drives the recurring scan job.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
