// Package events publishes an audit trail of authentication activity to a
// message broker. Publishing is best effort and never blocks a request.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Type names an auth event.
type Type string

const (
	LoginSucceeded  Type = "auth.login.succeeded"
	LoginFailed     Type = "auth.login.failed"
	Logout          Type = "auth.logout"
	PasswordChanged Type = "auth.password.changed"
	ProfileUpdated  Type = "user.profile.updated"
	UserCreated     Type = "user.created"
	UserDeleted     Type = "user.deleted"
)

const (
	// queueSize is the buffer of pending events. Events beyond it are dropped.
	queueSize      = 256
	publishTimeout = 5 * time.Second
)

// Event is the payload published for each auth event. It never carries
// credentials or tokens.
type Event struct {
	Type       Type      `json:"type"`
	UserID     string    `json:"userId,omitempty"`
	ActorID    string    `json:"actorId,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Sink is the broker operation the publisher needs; *mq.MQ satisfies it.
type Sink interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Publisher queues events and writes them to a Sink from a single goroutine.
// A nil *Publisher is valid and discards every event.
type Publisher struct {
	sink    Sink
	channel string
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan Event
	done    chan struct{}
	dropped atomic.Int64

	// ctx bounds every sink call; cancelled when Close gives up waiting.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPublisher starts a publisher writing to channel on sink.
func NewPublisher(sink Sink, channel string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		sink:    sink,
		channel: channel,
		logger:  logger,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go p.drain()
	return p
}

// Emit enqueues e without blocking. When the queue is full the event is
// dropped and a warning is logged.
func (p *Publisher) Emit(e Event) {
	if p == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- e:
	default:
		p.dropped.Add(1)
		p.logger.Warn("auth event queue full, dropping event", "type", e.Type)
	}
}

// EmitContext is Emit with the request ID taken from ctx.
func (p *Publisher) EmitContext(ctx context.Context, e Event) {
	if e.RequestID == "" {
		e.RequestID = middleware.GetReqID(ctx)
	}
	p.Emit(e)
}

// Dropped returns the number of events discarded, either because the queue
// was full or because Close ran out of time.
func (p *Publisher) Dropped() int64 {
	if p == nil {
		return 0
	}
	return p.dropped.Load()
}

// Close stops accepting events and waits until queued ones are published
// or ctx is done. In the latter case the in-flight publish is cancelled,
// the rest of the queue is dropped and ctx.Err() is returned.
func (p *Publisher) Close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Publisher) drain() {
	defer close(p.done)
	defer p.cancel()
	for e := range p.queue {
		if p.ctx.Err() != nil {
			p.dropped.Add(1)
			continue
		}
		p.publish(e)
	}
}

func (p *Publisher) publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.logger.Error("encode auth event failed", "type", e.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, publishTimeout)
	defer cancel()

	attrs := map[string]string{"type": string(e.Type)}
	if _, err := p.sink.Publish(ctx, p.channel, data, attrs); err != nil {
		p.logger.Error("publish auth event failed", "type", e.Type, "channel", p.channel, "error", err)
	}
}
