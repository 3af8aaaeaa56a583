// Package notify fans engine events out to UI subscribers. Publishing never
// waits on a subscriber; a subscriber with a full buffer misses the event.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/activity"
)

// Kind identifies an event type.
type Kind string

const (
	KindAlert      Kind = "alert"
	KindTranscript Kind = "transcript"
)

// Event is one message to the UI.
type Event struct {
	Kind      Kind                   `json:"kind"`
	Message   string                 `json:"message,omitempty"`
	DebateID  string                 `json:"debateId,omitempty"`
	Messages  []activity.ChatMessage `json:"messages,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// Notifier is what the engine signals. Implementations must not block.
type Notifier interface {
	Alert(message string)
	Transcript(debateID string, messages []activity.ChatMessage)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Alert(string) {}

func (Nop) Transcript(string, []activity.ChatMessage) {}

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 32

// Hub is an in-process Notifier with any number of subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
	now  func() time.Time
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event), now: time.Now}
}

// Subscribe returns a channel of events and a cancel function that closes it.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Alert asks the UI to show message to the user.
func (h *Hub) Alert(message string) {
	h.publish(Event{Kind: KindAlert, Message: message})
}

// Transcript asks the UI to render the current state of a debate.
func (h *Hub) Transcript(debateID string, messages []activity.ChatMessage) {
	h.publish(Event{Kind: KindTranscript, DebateID: debateID, Messages: messages})
}

func (h *Hub) publish(e Event) {
	e.Timestamp = activity.FormatTime(h.now())

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			log.Debug().Int("subscriber", id).Str("kind", string(e.Kind)).Msg("subscriber buffer full, dropping event")
		}
	}
}
