package domain

// Candidate identifies a single order discovered in the processing listing.
type Candidate struct {
	ID        string
	DetailRef string
}

// Outcome is the classifier's verdict for one candidate. "Absent" and
// "could not determine" are distinct so reporting and retries behave
// correctly.
type Outcome string

const (
	OutcomeCompletable     Outcome = "completable"
	OutcomeNotCompletable  Outcome = "not_completable"
	OutcomeEvaluationError Outcome = "evaluation_error"
)

// ActionResult is the outcome of attempting to advance an order.
type ActionResult string

const (
	// ActionAdvanced means the completion action was invoked successfully.
	ActionAdvanced ActionResult = "advanced"
	// ActionUnavailable means no completion control was found on an
	// otherwise completable order. A structural signal, not a transient one.
	ActionUnavailable ActionResult = "unavailable"
	// ActionFailed means invoking the completion control raised an error.
	ActionFailed ActionResult = "failed"
)

// CycleReport aggregates one reconciliation cycle for logging and alerting.
// It is discarded at cycle end; only the dedup ledger survives across cycles.
type CycleReport struct {
	RunID      string
	Candidates int
	Advanced   []string
	Failed     []string
	Errors     int
}
