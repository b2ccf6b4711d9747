package pipeline

import (
	"context"
	"sync"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// Emitter sends stage events for one request. Progress never decreases,
// exactly one terminal event is sent, and nothing is sent once the
// request's context is done. A nil *Emitter discards everything.
type Emitter struct {
	ctx  context.Context
	send func(types.StageEvent)

	mu       sync.Mutex
	progress int
	done     bool
}

// NewEmitter creates an emitter that calls send for every event.
func NewEmitter(ctx context.Context, send func(types.StageEvent)) *Emitter {
	return &Emitter{ctx: ctx, send: send}
}

func (e *Emitter) emit(ev types.StageEvent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return false
	}
	if e.ctx.Err() != nil {
		e.done = true
		return false
	}
	if ev.Progress < e.progress {
		ev.Progress = e.progress
	}
	if ev.Progress > 100 {
		ev.Progress = 100
	}
	e.progress = ev.Progress
	if ev.Status.Terminal() {
		e.done = true
	}
	e.send(ev)
	return true
}

// Stage reports a non-terminal stage. Progress is held below 100 until the
// terminal event.
func (e *Emitter) Stage(stage string, progress int, status types.StageStatus) {
	if e == nil {
		return
	}
	if status.Terminal() {
		status = types.StatusProcessing
	}
	e.emit(types.StageEvent{Stage: stage, Progress: min(progress, 99), Status: status})
}

// Complete sends the terminal complete event with result.
func (e *Emitter) Complete(result any) {
	if e == nil {
		return
	}
	e.emit(types.StageEvent{Stage: "complete", Progress: 100, Status: types.StatusComplete, Result: result})
}

// Fail sends the terminal error event. The message is safe to show to end
// users.
func (e *Emitter) Fail(err error) {
	if e == nil {
		return
	}
	e.emit(types.StageEvent{Stage: "error", Progress: e.current(), Status: types.StatusError, Error: PublicMessage(err)})
}

func (e *Emitter) current() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}
