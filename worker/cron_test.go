package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"dealcaster/internal/model"
)

type fakeCycler struct {
	cycles atomic.Int64
}

func (f *fakeCycler) RunCycle(ctx context.Context) error {
	f.cycles.Add(1)
	return nil
}

type fakeMaintainer struct{}

func (fakeMaintainer) Cleanup(ctx context.Context) error { return nil }
func (fakeMaintainer) Statistics(ctx context.Context) model.Statistics {
	return model.Statistics{}
}

func TestCronWorkerRunsFirstCycleImmediately(t *testing.T) {
	cyc := &fakeCycler{}
	w := &CronWorker{Scheduler: cyc, Store: fakeMaintainer{}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for cyc.cycles.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("startup cycle never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
}

func TestManagerReportsWorkerError(t *testing.T) {
	failing := workerFunc(func(ctx context.Context) error {
		return context.DeadlineExceeded
	})
	ok := workerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := NewManager(failing, ok).Start(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Start error = %v, want DeadlineExceeded", err)
	}
}

type workerFunc func(ctx context.Context) error

func (f workerFunc) Start(ctx context.Context) error { return f(ctx) }
