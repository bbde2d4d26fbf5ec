package domain

import "errors"

// Sentinel errors for the remote-source and notifier boundaries. Callers
// wrap them with context via fmt.Errorf and check them with errors.Is.
var (
	// ErrSourceUnavailable covers whole-cycle failures: login, listing
	// retrieval, or a page shape the parser no longer recognizes.
	ErrSourceUnavailable = errors.New("order source unavailable")

	// ErrDetailFetch covers per-candidate detail navigation or read failures.
	ErrDetailFetch = errors.New("order detail fetch failed")

	// ErrActionFailed means invoking the completion control threw.
	ErrActionFailed = errors.New("completion action failed")

	// ErrNotifier marks alert delivery failures. Always logged, never fatal.
	ErrNotifier = errors.New("notifier delivery failed")
)
