package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/crid/internal/registry"
)

// RequestIDGenerator generates unique request IDs for event correlation.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type RequestIDGenerator interface {
	Generate() string
}

// ErrStopped is returned by Submit once the engine no longer accepts or
// processes commands.
var ErrStopped = errors.New("engine stopped")

// Op names a registry mutation.
type Op string

const (
	OpCreateCourse     Op = "createCourse"
	OpUpdateEnrollment Op = "updateEnrollment"
)

// ParseOp accepts the operation names used in scenarios and on the wire.
func ParseOp(s string) (Op, error) {
	switch Op(s) {
	case OpCreateCourse, OpUpdateEnrollment:
		return Op(s), nil
	}
	return "", registry.NewInvalidArgument("op", fmt.Sprintf("unknown operation %q", s))
}

// Command is one mutation request. Caller is the authenticated identity;
// for OpUpdateEnrollment it is also the participant.
type Command struct {
	Op          Op                `json:"op"`
	Caller      registry.Identity `json:"caller"`
	Code        string            `json:"code"`
	MaxCapacity uint32            `json:"max_capacity,omitempty"`
	State       registry.State    `json:"state"`
}

// Outcome is what Submit reports for an applied command.
type Outcome struct {
	RequestID string         `json:"request_id"`
	Event     registry.Event `json:"event"`
}

// Engine is the single-writer command loop in front of a Registry.
//
// Thread-safety model:
//   - Submit(), Subscribe(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - subscribers run on the Run goroutine, in commit order
type Engine struct {
	reg    *registry.Registry
	queue  *requestQueue
	ids    RequestIDGenerator
	logger *slog.Logger

	mu          sync.Mutex
	subscribers []func(registry.Event)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over reg. Commands are tagged with IDs from ids.
func New(reg *registry.Registry, ids RequestIDGenerator, opts ...Option) *Engine {
	e := &Engine{
		reg:    reg,
		queue:  newRequestQueue(),
		ids:    ids,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the engine writes to. Reads may be served
// from it directly.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// Subscribe registers fn to receive every committed event.
// fn runs on the Run goroutine and must not call Submit.
func (e *Engine) Subscribe(fn func(registry.Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// QueueLen returns the number of commands waiting to be processed.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Submit enqueues cmd and waits for its outcome.
//
// A registry rejection is returned as the error, with the request ID still
// set in the Outcome. If ctx is cancelled while waiting, Submit returns
// ctx.Err() but the command may still be applied.
func (e *Engine) Submit(ctx context.Context, cmd Command) (Outcome, error) {
	req := request{
		id:    e.ids.Generate(),
		cmd:   cmd,
		reply: make(chan result, 1),
	}
	out := Outcome{RequestID: req.id}

	if !e.queue.Enqueue(req) {
		return out, ErrStopped
	}

	select {
	case res := <-req.reply:
		out.Event = res.event
		return out, res.err
	case <-ctx.Done():
		return out, ctx.Err()
	}
}

// Run processes commands until ctx is cancelled or Stop is called.
//
// On Stop, commands already queued are processed before Run returns nil.
// On cancellation, queued commands are rejected with ctx.Err() and Run
// returns ctx.Err().
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Debug("engine starting")

	for {
		if err := ctx.Err(); err != nil {
			return e.abort(err)
		}

		if req, ok := e.queue.TryDequeue(); ok {
			e.process(ctx, req)
			continue
		}

		select {
		case <-ctx.Done():
			return e.abort(ctx.Err())

		case <-e.queue.Wait():
			// The signal channel is closed by Close, so this fires
			// immediately once stopped.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Debug("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// abort closes the queue and rejects everything still in it with err.
func (e *Engine) abort(err error) error {
	e.logger.Info("engine stopping: context cancelled")
	e.queue.Close()
	for _, req := range e.queue.Drain() {
		req.reply <- result{err: err}
	}
	return err
}

// Stop stops accepting commands. Run returns once the queue is empty.
func (e *Engine) Stop() {
	e.queue.Close()
}

// process applies one command. Called only from Run.
func (e *Engine) process(ctx context.Context, req request) {
	cmd := req.cmd
	rctx := registry.WithRequestID(ctx, req.id)

	var (
		ev  registry.Event
		err error
	)
	switch cmd.Op {
	case OpCreateCourse:
		ev, err = e.reg.CreateCourse(rctx, cmd.Caller, cmd.Code, cmd.MaxCapacity)
	case OpUpdateEnrollment:
		ev, err = e.reg.UpdateEnrollment(rctx, cmd.Caller, cmd.Code, cmd.State)
	default:
		err = registry.NewInvalidArgument("op", fmt.Sprintf("unknown operation %q", cmd.Op))
	}

	if err != nil {
		e.logRejection(req, err)
		req.reply <- result{err: err}
		return
	}

	e.logger.Info("command applied",
		"request_id", req.id,
		"op", string(cmd.Op),
		"caller", string(cmd.Caller),
		"code", ev.Code,
		"seq", ev.Seq,
		"event_id", ev.ID,
	)

	e.publish(ev)
	req.reply <- result{event: ev}
}

func (e *Engine) logRejection(req request, err error) {
	if code := registry.CodeOf(err); code != "" {
		e.logger.Debug("command rejected",
			"request_id", req.id,
			"op", string(req.cmd.Op),
			"caller", string(req.cmd.Caller),
			"error_code", string(code),
		)
		return
	}
	e.logger.Error("command failed",
		"request_id", req.id,
		"op", string(req.cmd.Op),
		"caller", string(req.cmd.Caller),
		"error", err,
	)
}

func (e *Engine) publish(ev registry.Event) {
	e.mu.Lock()
	subs := make([]func(registry.Event), len(e.subscribers))
	copy(subs, e.subscribers)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
