package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 10

// Event is a server-sent event addressed to one employee.
type Event struct {
	ID          uint64
	RecipientID string
	Name        string
	Data        interface{}
}

// WriteTo encodes the event in text/event-stream framing with a JSON data
// line. Events that never went through a Hub (ID 0) carry no id field.
func (e Event) WriteTo(w io.Writer) (int64, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return 0, fmt.Errorf("failed to encode event data: %w", err)
	}
	var n int
	if e.ID == 0 {
		n, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Name, data)
	} else {
		n, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.ID, e.Name, data)
	}
	return int64(n), err
}

// Hub fans events out to the open streams of each recipient. Publishing
// never blocks: an event for a full stream is dropped.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	buffer      int
	seq         atomic.Uint64
}

func NewHub() *Hub {
	return NewHubWithBuffer(DefaultBuffer)
}

func NewHubWithBuffer(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		buffer:      buffer,
	}
}

// Subscribe opens a stream for recipientID. The returned cleanup closes the
// channel and must be called exactly once.
func (h *Hub) Subscribe(recipientID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.subscribers[recipientID] == nil {
		h.subscribers[recipientID] = make(map[chan Event]struct{})
	}
	h.subscribers[recipientID][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[recipientID], ch)
			close(ch)
			if len(h.subscribers[recipientID]) == 0 {
				delete(h.subscribers, recipientID)
			}
		})
	}

	return ch, cleanup
}

// Publish delivers event to every open stream of recipientID.
func (h *Hub) Publish(recipientID string, event Event) {
	event.RecipientID = recipientID
	event.ID = h.seq.Add(1)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[recipientID] {
		select {
		case ch <- event:
		default:
			slog.Warn("SSE stream full, event dropped", "recipient_id", recipientID, "event", event.Name)
		}
	}
}

// PublishToMany delivers event to each recipient, skipping duplicates.
func (h *Hub) PublishToMany(recipientIDs []string, event Event) {
	seen := make(map[string]struct{}, len(recipientIDs))
	for _, id := range recipientIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		h.Publish(id, event)
	}
}

func (h *Hub) SubscriberCount(recipientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[recipientID])
}

func (h *Hub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}
