package navigation

import (
	"context"
	"sync"
	"time"
)

const inputQueue = 64

// Runner owns a Controller on a single goroutine: input closures queued
// with Do and frame ticks are applied in arrival order, and each frame is
// handed to the publish callback.
type Runner struct {
	ctrl     *Controller
	interval time.Duration
	publish  func(Frame)

	inputs   chan func(*Controller)
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  sync.Once
}

func NewRunner(ctrl *Controller, interval time.Duration, publish func(Frame)) *Runner {
	if interval <= 0 {
		interval = ctrl.tuning.FrameInterval()
	}
	if publish == nil {
		publish = func(Frame) {}
	}
	return &Runner{
		ctrl:     ctrl,
		interval: interval,
		publish:  publish,
		inputs:   make(chan func(*Controller), inputQueue),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled or Stop is called. Calling Run more than
// once returns immediately.
func (r *Runner) Run(ctx context.Context) {
	first := false
	r.started.Do(func() { first = true })
	if !first {
		return
	}
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case fn := <-r.inputs:
			fn(r.ctrl)
		case ts := <-ticker.C:
			r.publish(r.ctrl.Frame(ts))
		}
	}
}

// Do queues fn to run on the runner goroutine. It blocks while the queue is
// full and reports false once the runner has stopped.
func (r *Runner) Do(fn func(*Controller)) bool {
	select {
	case <-r.stop:
		return false
	case <-r.done:
		return false
	default:
	}
	select {
	case r.inputs <- fn:
		return true
	case <-r.stop:
		return false
	case <-r.done:
		return false
	}
}

// Stop ends Run. It is safe to call more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Done is closed when Run has returned.
func (r *Runner) Done() <-chan struct{} { return r.done }
