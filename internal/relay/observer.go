package relay

import (
	"context"
	"time"
)

// Observer is notified as runs progress. Implementations must not block.
type Observer interface {
	ObserveStage(op Operation, stage Stage, elapsed time.Duration, err error)
	ObserveResult(ctx context.Context, res Result)
}

// Observers fans out to each non-nil observer in order.
type Observers []Observer

func (o Observers) ObserveStage(op Operation, stage Stage, elapsed time.Duration, err error) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveStage(op, stage, elapsed, err)
		}
	}
}

func (o Observers) ObserveResult(ctx context.Context, res Result) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveResult(ctx, res)
		}
	}
}
