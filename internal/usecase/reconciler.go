package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"orderwatch/internal/classify"
	"orderwatch/internal/domain"
	"orderwatch/internal/ports"
)

// ReconcilerDeps wires all driven adapters into the cycle orchestration.
type ReconcilerDeps struct {
	Source      ports.OrderSource
	Classifier  *classify.Classifier
	Ledger      ports.Ledger
	Notifier    ports.Notifier
	Logger      *slog.Logger
	Parallelism int
	Verbose     bool
}

// Reconciler runs one reconciliation cycle: discover candidates stuck in
// processing, evaluate each against the completion precondition, advance the
// eligible ones, and alert once per order that cannot be advanced.
type Reconciler struct {
	source      ports.OrderSource
	classifier  *classify.Classifier
	ledger      ports.Ledger
	notifier    ports.Notifier
	logger      *slog.Logger
	parallelism int
	verbose     bool
}

// NewReconciler constructs the orchestration component.
func NewReconciler(deps ReconcilerDeps) *Reconciler {
	parallelism := deps.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	return &Reconciler{
		source:      deps.Source,
		classifier:  deps.Classifier,
		ledger:      deps.Ledger,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		parallelism: parallelism,
		verbose:     deps.Verbose,
	}
}

// RunCycle performs one full pass. The source session is scoped to the call
// and closed on every exit path. Per-candidate failures are absorbed into
// the report; only login/listing failures surface as an error.
func (r *Reconciler) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	report := domain.CycleReport{RunID: uuid.NewString()}
	log := r.log().With("run_id", report.RunID)

	session, err := r.source.Open(ctx)
	if err != nil {
		return report, fmt.Errorf("open source session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn("close source session", "error", cerr)
		}
	}()

	candidates, err := session.ListProcessing(ctx)
	if err != nil {
		return report, fmt.Errorf("list processing orders: %w", err)
	}
	report.Candidates = len(candidates)
	log.Info("cycle discovered candidates", "count", len(candidates))

	if len(candidates) == 0 {
		if r.verbose {
			r.notify(ctx, log, "No processing orders found.")
		}
		return report, nil
	}

	var (
		mu       sync.Mutex
		advanced []string
		failed   []string
		errors   int
	)

	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for _, cand := range candidates {
		cand := cand
		g.Go(func() error {
			id, ok, evalErr := r.evaluate(ctx, session, cand, log)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				advanced = append(advanced, id)
			} else {
				failed = append(failed, id)
			}
			if evalErr {
				errors++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(advanced)
	sort.Strings(failed)
	report.Advanced = advanced
	report.Failed = failed
	report.Errors = errors

	r.alert(ctx, log, report)
	return report, nil
}

// evaluate classifies and, when eligible, acts on a single candidate. It
// returns the candidate id, whether the order was advanced, and whether the
// verdict came from an evaluation error rather than the classifier.
func (r *Reconciler) evaluate(ctx context.Context, session ports.SourceSession, cand domain.Candidate, log *slog.Logger) (string, bool, bool) {
	detail, err := session.FetchDetail(ctx, cand.DetailRef)
	if err != nil {
		log.Warn("detail fetch failed", "order", cand.ID, "error", err)
		return cand.ID, false, true
	}

	if r.classifier.Classify(detail) != domain.OutcomeCompletable {
		log.Info("precondition not met", "order", cand.ID)
		return cand.ID, false, false
	}

	result, err := session.AttemptComplete(ctx, cand.DetailRef)
	switch {
	case err != nil:
		log.Warn("completion action failed", "order", cand.ID, "error", err)
		return cand.ID, false, false
	case result == domain.ActionUnavailable:
		// No control on a completable order: the page shape likely changed.
		log.Warn("completion control not found", "order", cand.ID)
		return cand.ID, false, false
	default:
		log.Info("order advanced", "order", cand.ID)
		return cand.ID, true, false
	}
}

// alert routes the cycle's failures through the dedup ledger and sends at
// most one batch message for the ids that are new this process lifetime.
func (r *Reconciler) alert(ctx context.Context, log *slog.Logger, report domain.CycleReport) {
	var fresh []string
	for _, id := range report.Failed {
		if r.ledger.ReportIfNew(id) {
			fresh = append(fresh, id)
		}
	}

	if len(fresh) > 0 {
		r.notify(ctx, log, fmt.Sprintf("Orders stuck in processing: %s", strings.Join(fresh, ", ")))
	}

	if r.verbose && len(report.Advanced) > 0 {
		r.notify(ctx, log, fmt.Sprintf("Completed orders: %s", strings.Join(report.Advanced, ", ")))
	}
}

// notify is best-effort: delivery failures are logged and swallowed so the
// scan loop can never be taken down by the alert channel.
func (r *Reconciler) notify(ctx context.Context, log *slog.Logger, text string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Send(ctx, text); err != nil {
		log.Warn("notification dropped", "error", err)
	}
}

func (r *Reconciler) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
