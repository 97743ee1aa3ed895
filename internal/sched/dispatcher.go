package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dealcaster/internal/model"
)

// Dispatch randomization bounds, in seconds from the top of the hour.
const (
	maxOffsetSeconds = 3599
	jitterSeconds    = 30
	publishTimeout   = 30 * time.Second
	recordTimeout    = 10 * time.Second
)

// Status is the dispatcher's administrative snapshot.
type Status struct {
	Running      bool       `json:"running"`
	Paused       bool       `json:"paused"`
	PendingJobs  int        `json:"pending_jobs"`
	FiredJobs    int64      `json:"fired_jobs"`
	HourTarget   int        `json:"hour_target"`
	HourActual   int        `json:"hour_actual"`
	NextFireTime *time.Time `json:"next_fire_time,omitempty"`
}

// hourState tracks one hourly cycle: the fired-set guards against duplicate
// delivery, the counters feed status reporting.
type hourState struct {
	hour   int64 // absolute hour index
	target int
	actual int
	fired  map[string]struct{}
}

// Dispatcher spreads a selection across the hour and fires each job at its
// scheduled time.
type Dispatcher struct {
	publisher Publisher
	recorder  PostRecorder
	rng       Rand
	clock     Clock

	mu         sync.Mutex
	queue      *timerQueue
	hour       hourState
	paused     bool
	running    bool
	firedTotal int64
	wake       chan struct{}
}

func NewDispatcher(publisher Publisher, recorder PostRecorder, rng Rand, clock Clock) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		recorder:  recorder,
		rng:       rng,
		clock:     clock,
		queue:     newTimerQueue(),
		wake:      make(chan struct{}, 1),
	}
}

// ScheduleHour registers one-shot timers for the selection, each at a random
// offset within the hour plus jitter. Re-registering an identical key
// replaces the prior pending timer.
func (d *Dispatcher) ScheduleHour(selection []model.ScoredProduct, target int, hourStart time.Time) {
	hourIdx := hourStart.Unix() / 3600

	d.mu.Lock()
	d.hour = hourState{
		hour:   hourIdx,
		target: target,
		fired:  make(map[string]struct{}, len(selection)),
	}
	for i, sp := range selection {
		offset := d.rng.Intn(maxOffsetSeconds + 1)
		jitter := d.rng.Intn(2*jitterSeconds+1) - jitterSeconds
		delay := offset + jitter
		if delay < 0 {
			delay = 0
		}
		fireAt := hourStart.Add(time.Duration(delay) * time.Second)
		d.queue.Schedule(&job{
			key:     jobKey{ProductID: sp.Product.ID, Hour: hourIdx, Index: i},
			product: sp.Product,
			score:   sp.Score,
			fireAt:  fireAt,
		})
		slog.Info("dispatcher: post scheduled.", "id", sp.Product.ID, "fire_at", fireAt.Format("15:04:05"))
	}
	d.mu.Unlock()
	d.kick()
}

// Run drives the timer queue until the context is cancelled. Due jobs fire
// as independent tasks so a slow publish never stalls later timers.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	for {
		d.mu.Lock()
		var wait <-chan time.Time
		for {
			next := d.queue.Peek()
			if next == nil {
				break
			}
			delay := next.fireAt.Sub(d.clock.Now())
			if delay > 0 {
				wait = d.clock.After(delay)
				break
			}
			j := d.queue.Pop()
			go d.fire(ctx, j, false)
		}
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-d.wake:
		case <-wait:
		}
	}
}

// fire executes one job: pause check, fired-set idempotence guard, publish
// with a bounded timeout, then history recording. force skips the fired-set
// check (manual posts).
func (d *Dispatcher) fire(ctx context.Context, j *job, force bool) {
	d.mu.Lock()
	if d.paused {
		d.mu.Unlock()
		slog.Info("dispatcher: paused, post skipped.", "id", j.product.ID)
		return
	}
	_, reserved := d.hour.fired[j.product.ID]
	if !force && reserved {
		d.mu.Unlock()
		slog.Info("dispatcher: already posted this hour, skipping.", "id", j.product.ID)
		return
	}
	// Reserve the id before publishing so a concurrent timer for the same
	// product cannot double-deliver. A failed publish rolls the reservation
	// back, but only if this call made it: a forced post must not release a
	// reservation held by an earlier successful delivery.
	d.hour.fired[j.product.ID] = struct{}{}
	d.mu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	err := d.publisher.Publish(pctx, j.product)
	cancel()
	if err != nil {
		slog.Error("dispatcher: publish failed.", "id", j.product.ID, "error", err)
		d.mu.Lock()
		if !reserved {
			delete(d.hour.fired, j.product.ID)
		}
		d.mu.Unlock()
		return
	}

	d.mu.Lock()
	d.hour.actual++
	d.firedTotal++
	actual, target := d.hour.actual, d.hour.target
	d.mu.Unlock()

	// The history write gets its own deadline: a slow publish must not starve
	// the record step, or the anti-repetition guard never sees the post.
	rctx, rcancel := context.WithTimeout(ctx, recordTimeout)
	defer rcancel()
	if err := d.recorder.RecordPost(rctx, j.product, j.score); err != nil {
		slog.Error("dispatcher: record post failed.", "id", j.product.ID, "error", err)
	}
	slog.Info("dispatcher: post executed.", "id", j.product.ID, "actual", actual, "target", target)
}

// ForcePostNow bypasses scheduling and runs the fire handler immediately,
// ignoring the fired-set check.
func (d *Dispatcher) ForcePostNow(ctx context.Context, p model.Product, score float64) {
	d.fire(ctx, &job{product: p, score: score}, true)
}

// EmergencyStop cancels every pending timer. Jobs already firing complete
// normally.
func (d *Dispatcher) EmergencyStop() int {
	d.mu.Lock()
	n := d.queue.Clear()
	d.mu.Unlock()
	d.kick()
	slog.Info("dispatcher: emergency stop executed.", "cancelled", n)
	return n
}

// Pause suppresses firing without cancelling timers.
func (d *Dispatcher) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
	slog.Info("dispatcher: paused.")
}

// Resume re-enables firing.
func (d *Dispatcher) Resume() {
	d.mu.Lock()
	d.paused = false
	d.mu.Unlock()
	slog.Info("dispatcher: resumed.")
}

// Paused reports the pause flag.
func (d *Dispatcher) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// Status snapshots the dispatcher state for administrative callers.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{
		Running:     d.running,
		Paused:      d.paused,
		PendingJobs: d.queue.Len(),
		FiredJobs:   d.firedTotal,
		HourTarget:  d.hour.target,
		HourActual:  d.hour.actual,
	}
	if next := d.queue.Peek(); next != nil {
		t := next.fireAt
		st.NextFireTime = &t
	}
	return st
}

// HourProgress returns the current hour's target and actual counts.
func (d *Dispatcher) HourProgress() (target, actual int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hour.target, d.hour.actual
}

func (d *Dispatcher) kick() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}
