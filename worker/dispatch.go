package worker

import (
	"context"

	"dealcaster/internal/sched"
)

// DispatchWorker runs the dispatcher's timer loop.
type DispatchWorker struct {
	Dispatcher *sched.Dispatcher
}

func (w *DispatchWorker) Start(ctx context.Context) error {
	return w.Dispatcher.Run(ctx)
}
