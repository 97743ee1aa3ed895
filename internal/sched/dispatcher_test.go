package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dealcaster/internal/model"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	fail      map[string]bool
}

func (f *fakePublisher) Publish(ctx context.Context, p model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[p.ID] {
		return errors.New("channel unavailable")
	}
	f.published = append(f.published, p.ID)
	return nil
}

func (f *fakePublisher) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.published {
		if p == id {
			n++
		}
	}
	return n
}

func (f *fakePublisher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type fakeRecorder struct {
	mu            sync.Mutex
	posts         map[string]float64
	lastCtxErr    error
	lastRemaining time.Duration
}

func (f *fakeRecorder) RecordPost(ctx context.Context, p model.Product, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.posts == nil {
		f.posts = make(map[string]float64)
	}
	f.posts[p.ID] = score
	f.lastCtxErr = ctx.Err()
	if dl, ok := ctx.Deadline(); ok {
		f.lastRemaining = time.Until(dl)
	}
	return nil
}

func (f *fakeRecorder) recorded(id string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.posts[id]
	return s, ok
}

func hourStart() time.Time {
	return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
}

func startDispatcher(t *testing.T) (*Dispatcher, *fakePublisher, *fakeRecorder, *ManualClock, context.CancelFunc) {
	t.Helper()
	pub := &fakePublisher{fail: map[string]bool{}}
	rec := &fakeRecorder{}
	clk := NewManualClock(hourStart())
	d := NewDispatcher(pub, rec, NewRand(42), clk)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(cancel)
	return d, pub, rec, clk, cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func selectionOf(ids ...string) []model.ScoredProduct {
	out := make([]model.ScoredProduct, 0, len(ids))
	for i, id := range ids {
		out = append(out, model.ScoredProduct{
			Product: model.Product{ID: id, Title: "Product " + id},
			Score:   float64(50 + i),
		})
	}
	return out
}

func TestDispatcherFiresScheduledJobs(t *testing.T) {
	d, pub, rec, clk, _ := startDispatcher(t)
	d.ScheduleHour(selectionOf("a", "b", "c"), 3, hourStart())

	if st := d.Status(); st.PendingJobs != 3 {
		t.Fatalf("pending = %d, want 3", st.PendingJobs)
	}
	// An hour plus jitter flushes every timer.
	clk.Advance(time.Hour + time.Minute)
	waitFor(t, func() bool { return pub.total() == 3 })

	for _, id := range []string{"a", "b", "c"} {
		if pub.count(id) != 1 {
			t.Errorf("product %s published %d times, want 1", id, pub.count(id))
		}
		if _, ok := rec.recorded(id); !ok {
			t.Errorf("product %s not recorded", id)
		}
	}
	waitFor(t, func() bool {
		st := d.Status()
		return st.HourActual == 3 && st.PendingJobs == 0
	})
}

func TestDispatcherNeverFiresSameProductTwiceInHour(t *testing.T) {
	d, pub, _, clk, _ := startDispatcher(t)
	// Two distinct keys for the same product id within one hour.
	d.ScheduleHour([]model.ScoredProduct{
		{Product: model.Product{ID: "dup"}, Score: 10},
		{Product: model.Product{ID: "dup"}, Score: 20},
	}, 2, hourStart())

	clk.Advance(time.Hour + time.Minute)
	waitFor(t, func() bool { return d.Status().PendingJobs == 0 })
	waitFor(t, func() bool { return pub.total() >= 1 })
	time.Sleep(20 * time.Millisecond)
	if got := pub.count("dup"); got != 1 {
		t.Fatalf("product fired %d times in one hour, want 1", got)
	}
}

func TestDispatcherKeyReplacement(t *testing.T) {
	d, _, _, _, _ := startDispatcher(t)
	sel := selectionOf("a")
	d.ScheduleHour(sel, 1, hourStart())
	d.ScheduleHour(sel, 1, hourStart()) // same hour, same keys: replaces
	if st := d.Status(); st.PendingJobs != 1 {
		t.Fatalf("pending = %d after re-registration, want 1", st.PendingJobs)
	}
}

func TestDispatcherPauseSkipsWithoutRecording(t *testing.T) {
	d, pub, rec, clk, _ := startDispatcher(t)
	d.Pause()
	d.ScheduleHour(selectionOf("a"), 1, hourStart())
	clk.Advance(time.Hour + time.Minute)
	waitFor(t, func() bool { return d.Status().PendingJobs == 0 })
	time.Sleep(20 * time.Millisecond)
	if pub.total() != 0 {
		t.Errorf("published %d while paused, want 0", pub.total())
	}
	if _, ok := rec.recorded("a"); ok {
		t.Error("recorded a post while paused")
	}
}

func TestDispatcherEmergencyStopClearsPending(t *testing.T) {
	d, pub, _, clk, _ := startDispatcher(t)
	d.ScheduleHour(selectionOf("a", "b", "c", "d"), 4, hourStart())
	cancelled := d.EmergencyStop()
	if cancelled != 4 {
		t.Errorf("cancelled = %d, want 4", cancelled)
	}
	if st := d.Status(); st.PendingJobs != 0 {
		t.Fatalf("pending = %d after emergency stop, want 0", st.PendingJobs)
	}
	clk.Advance(2 * time.Hour)
	time.Sleep(20 * time.Millisecond)
	if pub.total() != 0 {
		t.Errorf("published %d after emergency stop, want 0", pub.total())
	}
}

func TestDispatcherPublishFailureIsNonFatal(t *testing.T) {
	d, pub, rec, clk, _ := startDispatcher(t)
	pub.fail["bad"] = true
	d.ScheduleHour(selectionOf("bad", "good"), 2, hourStart())
	clk.Advance(time.Hour + time.Minute)
	waitFor(t, func() bool { return pub.count("good") == 1 })
	if _, ok := rec.recorded("bad"); ok {
		t.Error("failed publish must not be recorded")
	}
	if _, ok := rec.recorded("good"); !ok {
		t.Error("successful publish must be recorded")
	}
	_, actual := d.HourProgress()
	if actual != 1 {
		t.Errorf("hour actual = %d, want 1", actual)
	}
}

func TestForcePostNowIgnoresFiredSet(t *testing.T) {
	d, pub, rec, clk, _ := startDispatcher(t)
	d.ScheduleHour(selectionOf("a"), 1, hourStart())
	clk.Advance(time.Hour + time.Minute)
	waitFor(t, func() bool { return pub.count("a") == 1 })

	d.ForcePostNow(context.Background(), model.Product{ID: "a"}, 66)
	if pub.count("a") != 2 {
		t.Errorf("force post did not bypass fired-set: count=%d", pub.count("a"))
	}
	if s, _ := rec.recorded("a"); s != 66 {
		t.Errorf("force post recorded score %v, want 66", s)
	}
}

func TestFailedForcePostRollsBackReservation(t *testing.T) {
	pub := &fakePublisher{fail: map[string]bool{"a": true}}
	rec := &fakeRecorder{}
	d := NewDispatcher(pub, rec, NewRand(3), NewManualClock(hourStart()))
	d.ScheduleHour(selectionOf("a"), 1, hourStart())

	d.ForcePostNow(context.Background(), model.Product{ID: "a"}, 50)
	if pub.count("a") != 0 {
		t.Fatalf("failing force post published %d times", pub.count("a"))
	}
	pub.fail["a"] = false

	// The scheduled job for the same product must still go out.
	d.fire(context.Background(), &job{product: model.Product{ID: "a"}, score: 50}, false)
	if pub.count("a") != 1 {
		t.Fatalf("scheduled job blocked by failed force post: count=%d", pub.count("a"))
	}
	if _, ok := rec.recorded("a"); !ok {
		t.Error("scheduled post not recorded")
	}
}

func TestFailedForcePostKeepsEarlierReservation(t *testing.T) {
	pub := &fakePublisher{fail: map[string]bool{}}
	rec := &fakeRecorder{}
	d := NewDispatcher(pub, rec, NewRand(3), NewManualClock(hourStart()))
	d.ScheduleHour(selectionOf("a"), 1, hourStart())

	d.fire(context.Background(), &job{product: model.Product{ID: "a"}, score: 50}, false)
	if pub.count("a") != 1 {
		t.Fatalf("delivery count = %d, want 1", pub.count("a"))
	}

	pub.fail["a"] = true
	d.ForcePostNow(context.Background(), model.Product{ID: "a"}, 50)
	pub.fail["a"] = false

	// The failed force post must not release the reservation made by the
	// earlier successful delivery.
	d.fire(context.Background(), &job{product: model.Product{ID: "a"}, score: 50}, false)
	if pub.count("a") != 1 {
		t.Fatalf("product delivered %d times in one hour, want 1", pub.count("a"))
	}
}

func TestRecordPostGetsOwnDeadline(t *testing.T) {
	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	d := NewDispatcher(pub, rec, NewRand(3), NewManualClock(hourStart()))
	d.ScheduleHour(selectionOf("a"), 1, hourStart())

	d.fire(context.Background(), &job{product: model.Product{ID: "a"}, score: 50}, false)
	if _, ok := rec.recorded("a"); !ok {
		t.Fatal("post not recorded")
	}
	if rec.lastCtxErr != nil {
		t.Errorf("recorder context already done: %v", rec.lastCtxErr)
	}
	if rec.lastRemaining <= 0 || rec.lastRemaining > recordTimeout {
		t.Errorf("recorder budget = %v, want its own %v deadline", rec.lastRemaining, recordTimeout)
	}
}

func TestDispatcherFireTimesWithinHour(t *testing.T) {
	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	clk := NewManualClock(hourStart())
	d := NewDispatcher(pub, rec, NewRand(7), clk)
	d.ScheduleHour(selectionOf("a", "b", "c", "d", "e"), 5, hourStart())

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, j := range d.queue.byKey {
		if j.fireAt.Before(hourStart()) {
			t.Errorf("job %v fires before hour start: %v", j.key, j.fireAt)
		}
		if j.fireAt.After(hourStart().Add(time.Hour + jitterSeconds*time.Second)) {
			t.Errorf("job %v fires too late: %v", j.key, j.fireAt)
		}
	}
}
