package sched

import (
	"context"
	"testing"
	"time"

	"dealcaster/internal/model"
)

func testScheduler(at time.Time, market Marketplace) (*Scheduler, *fakePublisher) {
	clk := NewManualClock(at)
	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	planner := NewPlanner(testPlannerConfig(), market, &fakeGuard{}, &fakeScorer{scores: map[string]float64{}}, NewRand(11), clk)
	dispatcher := NewDispatcher(pub, rec, NewRand(12), clk)
	return NewScheduler(planner, dispatcher, clk), pub
}

func TestRunCycleOutsideWindowIsNoop(t *testing.T) {
	market := &fakeMarket{hot: []model.Product{product("a")}}
	s, _ := testScheduler(time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC), market)
	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle error: %v", err)
	}
	if st := s.Status(); st.PendingJobs != 0 {
		t.Errorf("pending = %d outside window, want 0", st.PendingJobs)
	}
}

func TestRunCycleSchedulesWithinWindow(t *testing.T) {
	market := &fakeMarket{hot: []model.Product{product("a"), product("b"), product("c")}}
	s, _ := testScheduler(time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), market)
	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle error: %v", err)
	}
	st := s.Status()
	if st.PendingJobs != 3 {
		t.Errorf("pending = %d, want 3 (whole pool eligible, under target)", st.PendingJobs)
	}
	if st.HourTarget < 20 || st.HourTarget > 25 {
		t.Errorf("hour target = %d, out of configured bounds", st.HourTarget)
	}
	hs := s.HourlyStats()
	if !hs.IsPeakHour {
		t.Error("hour 12 should be a peak hour")
	}
	if hs.Remaining != hs.Target {
		t.Errorf("remaining = %d, want %d before any firing", hs.Remaining, hs.Target)
	}
}

func TestRunCycleEmptyPoolAbortsHour(t *testing.T) {
	market := &fakeMarket{}
	s, _ := testScheduler(time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), market)
	if err := s.RunCycle(context.Background()); err == nil {
		t.Fatal("expected error for empty candidate pool")
	}
	if st := s.Status(); st.PendingJobs != 0 {
		t.Errorf("pending = %d after aborted cycle, want 0", st.PendingJobs)
	}
}
