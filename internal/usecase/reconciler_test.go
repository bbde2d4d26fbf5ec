package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"orderwatch/internal/classify"
	"orderwatch/internal/domain"
	"orderwatch/internal/ledger"
	"orderwatch/internal/ports"
)

const marker = "ditt foto är nu redigerat"

type fakeSession struct {
	mu sync.Mutex

	candidates []domain.Candidate
	listErr    error
	details    map[string]string
	detailErr  map[string]error
	actionRes  map[string]domain.ActionResult
	actionErr  map[string]error

	completeCalls []string
	closed        bool
}

func (s *fakeSession) ListProcessing(ctx context.Context) ([]domain.Candidate, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.candidates, nil
}

func (s *fakeSession) FetchDetail(ctx context.Context, ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.detailErr[ref]; err != nil {
		return "", err
	}
	return s.details[ref], nil
}

func (s *fakeSession) AttemptComplete(ctx context.Context, ref string) (domain.ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeCalls = append(s.completeCalls, ref)
	if err := s.actionErr[ref]; err != nil {
		return domain.ActionFailed, err
	}
	if res, ok := s.actionRes[ref]; ok {
		return res, nil
	}
	return domain.ActionAdvanced, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type source struct {
	session *fakeSession
	openErr error
	opens   int
}

func (s *source) Open(ctx context.Context) (ports.SourceSession, error) {
	s.opens++
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.session, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
	calls int
}

func (n *fakeNotifier) Send(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.fail {
		return fmt.Errorf("%w: boom", domain.ErrNotifier)
	}
	n.sent = append(n.sent, text)
	return nil
}

func newTestReconciler(src *source, notifier *fakeNotifier, led *ledger.Ledger, verbose bool) *Reconciler {
	return NewReconciler(ReconcilerDeps{
		Source:     src,
		Classifier: classify.New([]string{marker}),
		Ledger:     led,
		Notifier:   notifier,
		Verbose:    verbose,
	})
}

func TestRunCycleAdvancesAndAlertsOnce(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{
		candidates: []domain.Candidate{
			{ID: "101", DetailRef: "/o/101"},
			{ID: "102", DetailRef: "/o/102"},
		},
		details: map[string]string{
			"/o/101": "hej! " + marker + " och klart",
			"/o/102": "din beställning behandlas",
		},
	}
	src := &source{session: sess}
	notifier := &fakeNotifier{}
	led := ledger.New()
	r := newTestReconciler(src, notifier, led, false)

	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle error: %v", err)
	}

	if report.Candidates != 2 {
		t.Fatalf("expected 2 candidates, got %d", report.Candidates)
	}
	if len(report.Advanced) != 1 || report.Advanced[0] != "101" {
		t.Fatalf("expected 101 advanced, got %v", report.Advanced)
	}
	if len(report.Failed) != 1 || report.Failed[0] != "102" {
		t.Fatalf("expected 102 failed, got %v", report.Failed)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %v", notifier.sent)
	}
	if want := "Orders stuck in processing: 102"; notifier.sent[0] != want {
		t.Fatalf("unexpected alert %q", notifier.sent[0])
	}
	if !led.ReportIfNew("103") {
		t.Fatalf("ledger sanity check failed")
	}
	if led.ReportIfNew("102") {
		t.Fatalf("102 should already be latched")
	}
	if !sess.closed {
		t.Fatalf("session must be closed after the cycle")
	}

	// Next cycle, 102 still failing: no new notification.
	sess2 := &fakeSession{
		candidates: sess.candidates,
		details:    sess.details,
	}
	src.session = sess2
	if _, err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("second RunCycle error: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("repeat failure must not re-alert, got %v", notifier.sent)
	}
}

func TestRunCycleNeverActsOnNotCompletable(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{
		candidates: []domain.Candidate{{ID: "200", DetailRef: "/o/200"}},
		details:    map[string]string{"/o/200": "inget klart här"},
	}
	r := newTestReconciler(&source{session: sess}, &fakeNotifier{}, ledger.New(), false)

	if _, err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle error: %v", err)
	}
	if len(sess.completeCalls) != 0 {
		t.Fatalf("completion must never be attempted for not-completable orders: %v", sess.completeCalls)
	}
}

func TestRunCycleIsolatesCandidateFailures(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{
		candidates: []domain.Candidate{
			{ID: "301", DetailRef: "/o/301"},
			{ID: "302", DetailRef: "/o/302"},
			{ID: "303", DetailRef: "/o/303"},
		},
		details: map[string]string{
			"/o/301": marker,
			"/o/303": marker,
		},
		detailErr: map[string]error{
			"/o/302": fmt.Errorf("%w: timeout", domain.ErrDetailFetch),
		},
	}
	r := newTestReconciler(&source{session: sess}, &fakeNotifier{}, ledger.New(), false)

	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle error: %v", err)
	}

	if len(report.Advanced) != 2 {
		t.Fatalf("failure on 302 must not block 301/303, advanced=%v", report.Advanced)
	}
	if report.Errors != 1 {
		t.Fatalf("expected 1 evaluation error, got %d", report.Errors)
	}
	if len(report.Failed) != 1 || report.Failed[0] != "302" {
		t.Fatalf("expected 302 failed, got %v", report.Failed)
	}
}

func TestRunCycleActionOutcomesAreFailures(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{
		candidates: []domain.Candidate{
			{ID: "401", DetailRef: "/o/401"},
			{ID: "402", DetailRef: "/o/402"},
		},
		details: map[string]string{
			"/o/401": marker,
			"/o/402": marker,
		},
		actionRes: map[string]domain.ActionResult{
			"/o/401": domain.ActionUnavailable,
		},
		actionErr: map[string]error{
			"/o/402": fmt.Errorf("%w: click threw", domain.ErrActionFailed),
		},
	}
	notifier := &fakeNotifier{}
	r := newTestReconciler(&source{session: sess}, notifier, ledger.New(), false)

	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle error: %v", err)
	}
	if len(report.Failed) != 2 {
		t.Fatalf("both action outcomes should count as failed, got %v", report.Failed)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one batch alert, got %v", notifier.sent)
	}
}

func TestRunCycleListingFailureAbortsCycle(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{
		listErr: fmt.Errorf("%w: timeout", domain.ErrSourceUnavailable),
	}
	notifier := &fakeNotifier{}
	r := newTestReconciler(&source{session: sess}, notifier, ledger.New(), false)

	_, err := r.RunCycle(context.Background())
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if len(sess.completeCalls) != 0 {
		t.Fatalf("no candidate processing may happen after a listing failure")
	}
	if !sess.closed {
		t.Fatalf("session must be closed even when the cycle aborts")
	}
	if notifier.calls != 0 {
		t.Fatalf("cycle-level errors are the scheduler's to report")
	}
}

func TestRunCycleOpenFailure(t *testing.T) {
	t.Parallel()

	src := &source{openErr: fmt.Errorf("%w: login failed", domain.ErrSourceUnavailable)}
	r := newTestReconciler(src, &fakeNotifier{}, ledger.New(), false)

	_, err := r.RunCycle(context.Background())
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestRunCycleNotifierFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{
		candidates: []domain.Candidate{{ID: "500", DetailRef: "/o/500"}},
		details:    map[string]string{"/o/500": "not done"},
	}
	notifier := &fakeNotifier{fail: true}
	r := newTestReconciler(&source{session: sess}, notifier, ledger.New(), false)

	if _, err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("notifier failure must not fail the cycle: %v", err)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected one delivery attempt, got %d", notifier.calls)
	}
}

func TestRunCycleVerboseIdleNotice(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{}
	notifier := &fakeNotifier{}
	r := newTestReconciler(&source{session: sess}, notifier, ledger.New(), true)

	if _, err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle error: %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != "No processing orders found." {
		t.Fatalf("expected idle notice in verbose mode, got %v", notifier.sent)
	}

	// Default mode: silence is the steady state.
	quiet := &fakeNotifier{}
	r2 := newTestReconciler(&source{session: &fakeSession{}}, quiet, ledger.New(), false)
	if _, err := r2.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle error: %v", err)
	}
	if quiet.calls != 0 {
		t.Fatalf("idle cycle must be silent by default, got %v", quiet.sent)
	}
}

func TestRunCycleVerboseAdvancedNotice(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{
		candidates: []domain.Candidate{
			{ID: "701", DetailRef: "/o/701"},
			{ID: "702", DetailRef: "/o/702"},
		},
		details: map[string]string{
			"/o/701": marker,
			"/o/702": marker,
		},
	}
	notifier := &fakeNotifier{}
	r := newTestReconciler(&source{session: sess}, notifier, ledger.New(), true)

	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle error: %v", err)
	}
	if len(report.Advanced) != 2 {
		t.Fatalf("expected both orders advanced, got %v", report.Advanced)
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != "Completed orders: 701, 702" {
		t.Fatalf("expected verbose completion summary, got %v", notifier.sent)
	}

	// Same inputs without verbose: advancing orders is silent.
	quiet := &fakeNotifier{}
	sess2 := &fakeSession{candidates: sess.candidates, details: sess.details}
	r2 := newTestReconciler(&source{session: sess2}, quiet, ledger.New(), false)
	if _, err := r2.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle error: %v", err)
	}
	if quiet.calls != 0 {
		t.Fatalf("advancing orders must not alert by default, got %v", quiet.sent)
	}
}

func TestRunCycleBoundedParallelism(t *testing.T) {
	t.Parallel()

	candidates := make([]domain.Candidate, 8)
	details := map[string]string{}
	for i := range candidates {
		ref := fmt.Sprintf("/o/%d", 600+i)
		candidates[i] = domain.Candidate{ID: fmt.Sprintf("%d", 600+i), DetailRef: ref}
		details[ref] = marker
	}
	sess := &fakeSession{candidates: candidates, details: details}
	r := NewReconciler(ReconcilerDeps{
		Source:      &source{session: sess},
		Classifier:  classify.New([]string{marker}),
		Ledger:      ledger.New(),
		Notifier:    &fakeNotifier{},
		Parallelism: 3,
	})

	report, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle error: %v", err)
	}
	if len(report.Advanced) != len(candidates) {
		t.Fatalf("expected all %d advanced, got %d", len(candidates), len(report.Advanced))
	}
	if len(sess.completeCalls) != len(candidates) {
		t.Fatalf("each candidate must be acted on exactly once, got %d calls", len(sess.completeCalls))
	}
}
