package audit

import "context"

type queued struct {
	ctx   context.Context
	entry Entry
}

// worker drains the async buffer in order. Write errors are logged by persist
// and do not stop the loop.
type worker struct {
	svc   *Service
	inbox <-chan queued
}

func (w *worker) run() {
	for q := range w.inbox {
		_ = w.svc.persist(q.ctx, q.entry)
		if w.svc.metrics != nil {
			w.svc.metrics.QueueDepth.Set(float64(len(w.inbox)))
		}
	}
}
