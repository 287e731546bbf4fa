package store

import (
	"context"

	"github.com/teslashibe/go-hunter/pkg/notify"
)

// Sink returns a notify.Sink that records lifecycle and cycle events.
func (s *Store) Sink() notify.Sink {
	return notify.SinkFunc(func(ctx context.Context, ev notify.Event) error {
		switch ev.Type {
		case notify.LoopStarted:
			return s.SaveSession(ctx, Session{ID: ev.Session, Started: ev.At})
		case notify.LoopStopped:
			sess := Session{ID: ev.Session, Started: ev.At}
			stopped := ev.At
			sess.Stopped = &stopped
			if sum := ev.Summary; sum != nil {
				sess.Started = sum.Started
				sess.Ticks = sum.Ticks
				sess.Detections = sum.Detections
				sess.Acquisitions = sum.Acquisitions
				sess.Cycles = sum.Cycles
				sess.Reason = sum.Reason
			}
			return s.SaveSession(ctx, sess)
		case notify.CycleCompleted:
			if ev.Cycle == nil {
				return nil
			}
			return s.SaveCycle(ctx, ev.Session, *ev.Cycle)
		}
		return nil
	})
}
