package interval

import (
	"context"
	"time"

	"orderwatch/internal/ports"
)

// Driver runs a job on a fixed interval with run-then-wait semantics: the
// timer is armed only after the job returns, so a slow cycle delays the next
// one instead of overlapping it. The first run fires immediately.
type Driver struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

var _ ports.Scheduler = (*Driver)(nil)

// New builds a driver with the given wait between runs.
func New(interval time.Duration) *Driver {
	return &Driver{interval: interval}
}

// Start launches the loop goroutine. Calling Start on a running driver is a
// no-op, including after a Stop that timed out while the previous loop was
// still finishing its job: a second loop would break the one-cycle-at-a-time
// invariant.
func (d *Driver) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if d.stop != nil {
		return nil
	}
	if d.done != nil {
		select {
		case <-d.done:
		default:
			return nil
		}
	}

	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		timer := time.NewTimer(0)
		defer timer.Stop()
		for {
			select {
			case t := <-timer.C:
				job(t)
				timer.Reset(d.interval)
			case <-ctx.Done():
				return
			case <-d.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the loop and waits for an in-flight job to finish, up to the
// context deadline.
func (d *Driver) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	select {
	case <-d.done:
	case <-ctx.Done():
		d.stop = nil
		return ctx.Err()
	}
	d.stop = nil
	return nil
}
