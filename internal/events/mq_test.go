package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planthub/authapi/internal/mq"
)

func TestPublisherThroughMemoryBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broker := mq.New(mq.NewMemoryBackend())
	defer broker.Close()

	p := NewPublisher(broker, "auth-events", quietLogger())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	var reqCtx context.Context
	capture := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { reqCtx = r.Context() })
	middleware.RequestID(capture).ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, reqCtx)

	p.EmitContext(reqCtx, Event{Type: Logout, UserID: "u1"})
	require.NoError(t, p.Close(ctx))

	received := make(chan mq.Message, 1)
	subCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = broker.Subscribe(subCtx, "auth-events", func(_ context.Context, msg mq.Message) error {
			received <- msg
			return nil
		})
	}()

	select {
	case msg := <-received:
		var e Event
		require.NoError(t, json.Unmarshal(msg.Data, &e))
		assert.Equal(t, Logout, e.Type)
		assert.Equal(t, "u1", e.UserID)
		assert.Equal(t, middleware.GetReqID(reqCtx), e.RequestID)
		assert.NotEmpty(t, e.RequestID)
		assert.Equal(t, string(Logout), msg.Attributes["type"])
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}

func TestPublisherCloseWithSaturatedMemoryBroker(t *testing.T) {
	broker := mq.New(mq.NewMemoryBackend())
	defer broker.Close()

	// Nobody consumes the channel, so it fills up and then refuses more.
	var err error
	for i := 0; i < 4096 && err == nil; i++ {
		_, err = broker.Publish(context.Background(), "auth-events", []byte("{}"), nil)
	}
	require.ErrorIs(t, err, mq.ErrQueueFull)

	p := NewPublisher(broker, "auth-events", quietLogger())
	for i := 0; i < queueSize; i++ {
		p.Emit(Event{Type: LoginFailed})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, p.Close(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
}
