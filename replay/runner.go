package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Model selects how replays are scheduled off the caller's goroutine
type Model string

const (
	// ModelWorker runs every replay on one long-lived goroutine
	ModelWorker Model = "worker"
	// ModelOneShot starts a goroutine per trigger
	ModelOneShot Model = "oneshot"
)

// Runner schedules replays in response to triggers
type Runner interface {
	Start(ctx context.Context)
	// Trigger requests a replay without blocking. It returns false when the
	// request was folded into one already pending or the runner has stopped.
	Trigger() bool
	// Stop prevents new replays and waits for one in flight to finish
	Stop()
}

// NewRunner creates the runner for model
func NewRunner(model Model, engine *Engine) (Runner, error) {
	switch model {
	case ModelWorker, "":
		return NewWorker(engine), nil
	case ModelOneShot:
		return NewOneShot(engine), nil
	default:
		return nil, fmt.Errorf("unknown replay model: %s", model)
	}
}

// Worker is a persistent replay loop. Triggers arriving while a replay is
// pending or running are coalesced into it.
type Worker struct {
	engine  *Engine
	pending atomic.Bool
	wake    chan struct{}
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup

	mu  sync.Mutex
	ctx context.Context
}

// NewWorker creates a worker; call Start to run its loop
func NewWorker(engine *Engine) *Worker {
	return &Worker{
		engine: engine,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start runs the loop until ctx is cancelled or Stop is called
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

func (w *Worker) loop(ctx context.Context) {
	slog.Debug("Replay worker started")
	defer slog.Debug("Replay worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.wake:
		}

		if _, err := w.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Replay failed", "error", err)
		}
		w.pending.Store(false)
	}
}

// Trigger marks a replay as pending and wakes the loop
func (w *Worker) Trigger() bool {
	if w.stopped() {
		return false
	}
	if !w.pending.CompareAndSwap(false, true) {
		slog.Debug("Replay already pending, trigger coalesced")
		return false
	}

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

// stopped reports whether Stop was called or the loop context has ended
func (w *Worker) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
	}

	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	return ctx != nil && ctx.Err() != nil
}

// Stop ends the loop and waits for it to exit
func (w *Worker) Stop() {
	w.stop.Do(func() { close(w.done) })
	w.wg.Wait()
}

// OneShot starts an independent goroutine per trigger; the engine guard
// drops any that overlap a replay in flight.
type OneShot struct {
	engine *Engine

	mu      sync.Mutex
	ctx     context.Context
	stopped bool
	wg      sync.WaitGroup
}

// NewOneShot creates a one-shot runner
func NewOneShot(engine *Engine) *OneShot {
	return &OneShot{engine: engine, ctx: context.Background()}
}

// Start sets the context handed to every replay
func (o *OneShot) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ctx = ctx
}

// Trigger starts a replay goroutine. It returns false once stopped or cancelled.
func (o *OneShot) Trigger() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped || o.ctx.Err() != nil {
		return false
	}

	ctx := o.ctx
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_, err := o.engine.Run(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrBusy):
			slog.Debug("Replay trigger dropped")
		case errors.Is(err, context.Canceled):
		default:
			slog.Error("Replay failed", "error", err)
		}
	}()
	return true
}

// Stop refuses further triggers and waits for running goroutines
func (o *OneShot) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	o.wg.Wait()
}
