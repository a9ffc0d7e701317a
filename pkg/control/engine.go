package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aircast-dev/aircast/pkg/jsonrpc"
	"github.com/aircast-dev/aircast/pkg/transport"
)

// NotificationHandler consumes the params payload of one notification.
// Handlers run on the connection's single reader goroutine, so one handler
// always finishes before the next inbound message is processed.
type NotificationHandler func(params json.RawMessage)

// pendingCall is one outstanding request. It is terminal once done closes:
// either result or err is set, never both.
type pendingCall struct {
	done   chan struct{}
	result json.RawMessage
	err    *jsonrpc.Error
}

// Engine multiplexes concurrent requests over one connection. It assigns
// request ids from a monotonic counter, suspends each caller until the
// matching response arrives, and routes notifications to registered
// handlers. An Engine lives exactly as long as its connection; reconnecting
// builds a fresh one.
type Engine struct {
	handlers     map[string]NotificationHandler
	onDisconnect func(error)
	logger       *slog.Logger
	metrics      *Metrics
	tracer       trace.Tracer

	nextID atomic.Uint64

	mu      sync.Mutex
	conn    transport.Conn
	pending map[uint64]*pendingCall
	lost    bool
}

// NewEngine builds an engine with its notification handler table. The table
// is resolved once at construction; methods without an entry are ignored on
// arrival, which keeps the engine forward-compatible with notification
// types it does not know.
func NewEngine(handlers map[string]NotificationHandler, onDisconnect func(error), logger *slog.Logger, metrics *Metrics, tracer trace.Tracer) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		handlers:     handlers,
		onDisconnect: onDisconnect,
		logger:       logger,
		metrics:      metrics,
		tracer:       tracer,
		pending:      make(map[uint64]*pendingCall),
	}
}

// Attach binds the engine to its connection. Called once after dialing,
// before the first Request.
func (e *Engine) Attach(conn transport.Conn) {
	e.mu.Lock()
	e.conn = conn
	e.mu.Unlock()
}

// Request sends one call and suspends the caller until the matching
// response arrives, the connection drops, or ctx is canceled. Concurrent
// callers do not block each other; responses match purely by id, whatever
// order they arrive in.
//
// A protocol-level error from the coordinator is returned as a
// *jsonrpc.Error: data, not a transport failure.
func (e *Engine) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := e.nextID.Add(1)
	data, err := jsonrpc.EncodeRequest(method, id, params)
	if err != nil {
		return nil, err
	}

	call := &pendingCall{done: make(chan struct{})}

	e.mu.Lock()
	if e.lost {
		e.mu.Unlock()
		return nil, jsonrpc.ConnectionLost()
	}
	conn := e.conn
	if conn == nil {
		e.mu.Unlock()
		return nil, ErrNotConnected
	}
	e.pending[id] = call
	e.mu.Unlock()

	start := time.Now()
	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "rpc."+method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("rpc.method", method),
				attribute.Int64("rpc.id", int64(id)),
			))
		defer span.End()
	}

	if err := conn.Write(data); err != nil {
		e.forget(id)
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write failed")
		}
		e.metrics.RecordRequest(method, outcomeTransportError, time.Since(start))
		return nil, err
	}

	select {
	case <-call.done:
	case <-ctx.Done():
		e.forget(id)
		if span != nil {
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "canceled")
		}
		e.metrics.RecordRequest(method, outcomeCanceled, time.Since(start))
		return nil, ctx.Err()
	}

	if call.err != nil {
		if span != nil {
			span.SetStatus(codes.Error, call.err.Message)
		}
		e.metrics.RecordRequest(method, outcomeError, time.Since(start))
		return nil, call.err
	}
	e.metrics.RecordRequest(method, outcomeOK, time.Since(start))
	return call.result, nil
}

// forget drops a pending call that will never complete (write failure or
// caller cancellation). A response arriving later for its id is then
// silently ignored like any other stale id.
func (e *Engine) forget(id uint64) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
}

// HandleMessage implements transport.Sink. Responses complete their pending
// call; messages without an id dispatch as notifications. Neither path may
// fail the read loop: a stale response id and an unknown notification
// method are both dropped.
func (e *Engine) HandleMessage(msg jsonrpc.Message) {
	if msg.IsResponse() {
		e.handleResponse(msg)
		return
	}

	handler, ok := e.handlers[msg.Method]
	if !ok {
		e.logger.Debug("no handler for notification", "method", msg.Method)
		return
	}
	e.metrics.RecordNotification(msg.Method)
	handler(msg.Params)
}

func (e *Engine) handleResponse(msg jsonrpc.Message) {
	e.mu.Lock()
	call, ok := e.pending[*msg.ID]
	if ok {
		delete(e.pending, *msg.ID)
	}
	e.mu.Unlock()

	if !ok {
		e.logger.Debug("response for unknown request id", "id", *msg.ID)
		return
	}

	call.result = msg.Result
	call.err = msg.Error
	close(call.done)
}

// ConnectionLost implements transport.Sink. Every still-pending call is
// released with a synthetic connection-lost error in one pass, then the
// disconnect handler runs. No caller is left suspended forever.
func (e *Engine) ConnectionLost(err error) {
	e.mu.Lock()
	e.lost = true
	calls := e.pending
	e.pending = make(map[uint64]*pendingCall)
	e.mu.Unlock()

	for _, call := range calls {
		call.err = jsonrpc.ConnectionLost()
		close(call.done)
	}

	if len(calls) > 0 {
		e.logger.Debug("released pending calls on disconnect", "count", len(calls))
	}

	if e.onDisconnect != nil {
		e.onDisconnect(err)
	}
}
