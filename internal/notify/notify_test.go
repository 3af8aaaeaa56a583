package notify

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/objective/internal/activity"
)

func TestHub_FanOut(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe(4)
	defer cancelA()
	b, cancelB := h.Subscribe(4)
	defer cancelB()

	h.Alert("set your key")

	for _, ch := range []<-chan Event{a, b} {
		e := <-ch
		assert.Equal(t, KindAlert, e.Kind)
		assert.Equal(t, "set your key", e.Message)
		assert.NotEmpty(t, e.Timestamp)
	}
}

func TestHub_Transcript(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	msgs := activity.Chat([]activity.DebateMessage{{Role: activity.RoleAI, Content: "hi"}})
	h.Transcript("01DEBATE", msgs)

	e := <-ch
	assert.Equal(t, KindTranscript, e.Kind)
	assert.Equal(t, "01DEBATE", e.DebateID)
	assert.Equal(t, msgs, e.Messages)
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Alert("spam")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, 1)
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	require.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())

	// Publishing after cancel is harmless
	h.Alert("nobody listening")
}

func TestHub_ServeWS(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(h.ServeWS(nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	h.Alert("hello")

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var e Event
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, KindAlert, e.Kind)
	assert.Equal(t, "hello", e.Message)
}
