package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/harsh7800/adofly/internal/orchestrator"
)

// EventStream sends pipeline events to a browser as Server-Sent Events, one
// unnamed data frame per event. Phase and result events share the default
// "message" type; clients tell them apart by their keys.
type EventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewEventStream wraps w. Frames are flushed as they are sent when w
// supports it.
func NewEventStream(w http.ResponseWriter) *EventStream {
	f, _ := w.(http.Flusher)
	return &EventStream{w: w, flusher: f}
}

// Open commits a 200 response with the event-stream headers so the client
// sees the stream before the first stage starts.
func (es *EventStream) Open() {
	h := es.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	es.w.WriteHeader(http.StatusOK)
	es.flush()
}

// Send writes ev as a "data: {json}" frame. An error means the client is
// gone and nothing more should be sent.
func (es *EventStream) Send(ev orchestrator.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("server: encode %q event: %w", ev.Phase, err)
	}
	if _, err := fmt.Fprintf(es.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("server: send event: %w", err)
	}
	es.flush()
	return nil
}

func (es *EventStream) flush() {
	if es.flusher != nil {
		es.flusher.Flush()
	}
}
