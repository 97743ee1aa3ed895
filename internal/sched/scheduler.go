package sched

import (
	"context"
	"time"
)

// HourlyStats reports progress for the current hourly cycle.
type HourlyStats struct {
	CurrentHour int  `json:"current_hour"`
	Target      int  `json:"target_posts"`
	Actual      int  `json:"actual_posts"`
	Remaining   int  `json:"posts_remaining"`
	IsPeakHour  bool `json:"is_peak_hour"`
}

// Scheduler ties the hourly planner to the job dispatcher and is the single
// surface administrative callers talk to.
type Scheduler struct {
	planner    *Planner
	dispatcher *Dispatcher
	clock      Clock
}

func NewScheduler(planner *Planner, dispatcher *Dispatcher, clock Clock) *Scheduler {
	return &Scheduler{planner: planner, dispatcher: dispatcher, clock: clock}
}

// Dispatcher exposes the dispatch loop for the worker manager.
func (s *Scheduler) Dispatcher() *Dispatcher { return s.dispatcher }

// Planner exposes the planner, used by inspection commands.
func (s *Scheduler) Planner() *Planner { return s.planner }

// RunCycle executes one hourly cycle: plan, then schedule the selection
// across the hour. A cycle outside the active window is a no-op; a failed
// cycle aborts this hour only and the next boundary retries fresh.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	selection, target, err := s.planner.PlanHour(ctx)
	if err != nil {
		return err
	}
	if len(selection) == 0 && target == 0 {
		return nil // outside the active window
	}
	now := s.clock.Now().In(s.planner.Location())
	hourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	s.dispatcher.ScheduleHour(selection, target, hourStart)
	return nil
}

func (s *Scheduler) Status() Status { return s.dispatcher.Status() }

func (s *Scheduler) Pause() { s.dispatcher.Pause() }

func (s *Scheduler) Resume() { s.dispatcher.Resume() }

func (s *Scheduler) EmergencyStop() int { return s.dispatcher.EmergencyStop() }

func (s *Scheduler) AdjustFrequency(min, max int) error {
	return s.planner.AdjustFrequency(min, max)
}

// HourlyStats snapshots the current hour's progress.
func (s *Scheduler) HourlyStats() HourlyStats {
	now := s.clock.Now().In(s.planner.Location())
	target, actual := s.dispatcher.HourProgress()
	remaining := target - actual
	if remaining < 0 {
		remaining = 0
	}
	return HourlyStats{
		CurrentHour: now.Hour(),
		Target:      target,
		Actual:      actual,
		Remaining:   remaining,
		IsPeakHour:  s.planner.IsPeakHour(now.Hour()),
	}
}
