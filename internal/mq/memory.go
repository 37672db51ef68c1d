package mq

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrClosed is returned by a closed MemoryBackend.
	ErrClosed = errors.New("mq backend closed")
	// ErrQueueFull is returned when a channel with no subscriber is full.
	ErrQueueFull = errors.New("mq queue full")
)

const memoryQueueSize = 1024

// MemoryBackend delivers messages between goroutines of one process. Each
// channel is a single queue shared by its subscribers.
type MemoryBackend struct {
	mu     sync.Mutex
	queues map[string]chan Message
	subs   map[string]int
	seq    uint64
	closed bool
	done   chan struct{}
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		queues: make(map[string]chan Message),
		subs:   make(map[string]int),
		done:   make(chan struct{}),
	}
}

func (b *MemoryBackend) queue(channel string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan Message, memoryQueueSize)
		b.queues[channel] = q
	}
	return q, nil
}

// Publish enqueues data on channel. While the queue is full it blocks if
// the channel has a subscriber and fails with ErrQueueFull otherwise.
func (b *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}
	q, err := b.queue(channel)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	b.seq++
	id := strconv.FormatUint(b.seq, 10)
	consumed := b.subs[channel] > 0
	b.mu.Unlock()

	msg := Message{ID: id, Data: append([]byte(nil), data...), Attributes: copyAttrs(attrs)}
	select {
	case q <- msg:
		return id, nil
	default:
	}
	if !consumed {
		return "", ErrQueueFull
	}
	select {
	case q <- msg:
		return id, nil
	case <-b.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Subscribe consumes messages from channel. A message whose handler fails
// is requeued once.
func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}
	q, err := b.queue(channel)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.subs[channel]++
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.subs[channel]--
		b.mu.Unlock()
	}()

	redelivered := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return ErrClosed
		case msg := <-q:
			if err := handler(ctx, msg); err != nil && !redelivered[msg.ID] {
				redelivered[msg.ID] = true
				select {
				case q <- msg:
				default:
				}
				continue
			}
			delete(redelivered, msg.ID)
		}
	}
}

// Close wakes up every subscriber and rejects further publishing.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}

func copyAttrs(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
