package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
)

// Phase is the kind of event an Operation publishes.
type Phase int

const (
	Started Phase = iota
	Done
	FailedPhase
)

func (p Phase) String() string {
	switch p {
	case Started:
		return "start"
	case Done:
		return "done"
	case FailedPhase:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Event is published to subscribers. For Done events Result is set, for
// FailedPhase events Err is set. Params are redacted when P implements
// Redacted() P.
type Event[P Params, R any] struct {
	Operation string
	RequestID string
	Phase     Phase
	Params    P
	Result    R
	Err       error
}

// Completion is the terminal outcome of one Start.
type Completion[P Params, R any] struct {
	RequestID string
	Params    P
	Result    R
	Err       error
}

// Producer performs the work of an operation.
type Producer[P Params, R any] func(ctx context.Context, params P) (R, error)

// Options configures an Operation.
type Options struct {
	Logger *slog.Logger
	// Development enables Error logging of failures that carry no domain
	// error kind.
	Development bool
}

// Operation is the orchestrator for one action family. Concurrent Starts
// with different params run independently and may complete in any order.
type Operation[P Params, R any] struct {
	name    string
	produce Producer[P, R]
	logger  *slog.Logger
	dev     bool

	mu     sync.Mutex
	subs   map[int]func(Event[P, R])
	nextID int

	wg sync.WaitGroup
}

// NewOperation creates an orchestrator named name around produce.
func NewOperation[P Params, R any](name string, produce Producer[P, R], opts Options) *Operation[P, R] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Operation[P, R]{
		name:    name,
		produce: produce,
		logger:  logger.With(slog.String("operation", name)),
		dev:     opts.Development,
		subs:    make(map[int]func(Event[P, R])),
	}
}

// Name returns the action family name.
func (o *Operation[P, R]) Name() string {
	return o.name
}

// Subscribe registers fn for every event. Events are delivered on the
// goroutine that produced them, so fn must not block. The returned
// function removes the subscription.
func (o *Operation[P, R]) Subscribe(fn func(Event[P, R])) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Start dispatches one run of the producer and returns a channel that
// receives its completion. The Started event is published before Start
// returns. The channel is buffered so callers may ignore it.
func (o *Operation[P, R]) Start(ctx context.Context, params P) <-chan Completion[P, R] {
	reqID := uuid.NewString()
	public := redact(params)
	out := make(chan Completion[P, R], 1)

	o.publish(Event[P, R]{Operation: o.name, RequestID: reqID, Phase: Started, Params: public})

	o.wg.Add(1)

	go func() {
		defer o.wg.Done()

		result, err := o.run(ctx, params)

		c := Completion[P, R]{RequestID: reqID, Params: public, Err: err}
		ev := Event[P, R]{Operation: o.name, RequestID: reqID, Params: public, Err: err}

		if err != nil {
			ev.Phase = FailedPhase
			o.logFailure(reqID, err)
		} else {
			c.Result = result
			ev.Phase = Done
			ev.Result = result
		}

		o.publish(ev)
		out <- c
		close(out)
	}()

	return out
}

// Run starts the operation and waits for its completion.
func (o *Operation[P, R]) Run(ctx context.Context, params P) (R, error) {
	c := <-o.Start(ctx, params)
	return c.Result, c.Err
}

// Wait blocks until every started run has published its completion.
func (o *Operation[P, R]) Wait() {
	o.wg.Wait()
}

func (o *Operation[P, R]) run(ctx context.Context, params P) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: producer panicked: %v", o.name, r)
		}
	}()

	return o.produce(ctx, params)
}

func (o *Operation[P, R]) publish(ev Event[P, R]) {
	o.mu.Lock()
	subs := make([]func(Event[P, R]), 0, len(o.subs))

	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func (o *Operation[P, R]) logFailure(reqID string, err error) {
	kind := apperrors.KindOf(err)
	if kind != apperrors.Unknown {
		o.logger.Debug("operation failed",
			slog.String("request_id", reqID),
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)

		return
	}

	if o.dev {
		o.logger.Error("unexpected operation failure",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
	}
}

func redact[P Params](p P) P {
	if r, ok := any(p).(interface{ Redacted() P }); ok {
		return r.Redacted()
	}

	return p
}
