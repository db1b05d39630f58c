package handlers

import (
	"net/http"
	"strconv"
	"sync"

	"media-catalog/internal/indexer"
)

// DefaultEventFeedSize is the number of events an EventFeed keeps.
const DefaultEventFeedSize = 500

// EventFeed keeps the most recent catalog events for the API. Add is used
// as the scheduler's event sink.
type EventFeed struct {
	mu   sync.Mutex
	buf  []indexer.Event
	next int
	full bool
}

// NewEventFeed creates a feed holding at most size events.
func NewEventFeed(size int) *EventFeed {
	if size <= 0 {
		size = DefaultEventFeedSize
	}
	return &EventFeed{buf: make([]indexer.Event, size)}
}

// Add records an event, dropping the oldest one when the feed is full.
func (f *EventFeed) Add(e indexer.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf[f.next] = e
	f.next = (f.next + 1) % len(f.buf)
	if f.next == 0 {
		f.full = true
	}
}

// Recent returns up to limit of the newest events, oldest first. A
// non-positive limit returns every event held.
func (f *EventFeed) Recent(limit int) []indexer.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := f.next
	if f.full {
		count = len(f.buf)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	result := make([]indexer.Event, 0, limit)
	start := f.next - limit
	if start < 0 {
		start += len(f.buf)
	}
	for i := 0; i < limit; i++ {
		result = append(result, f.buf[(start+i)%len(f.buf)])
	}
	return result
}

// GetEvents returns recent catalog events
func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.events.Recent(limit))
}
