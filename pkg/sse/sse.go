// Package sse writes Server-Sent Events streams.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Writer wraps an http.ResponseWriter for an SSE response. Not safe for
// concurrent use.
type Writer struct {
	rw      http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares rw for an SSE stream and sends the headers. It fails
// when the underlying writer cannot flush (e.g. a non-streaming proxy
// test recorder without Flusher support).
func NewWriter(rw http.ResponseWriter) (*Writer, error) {
	flusher, ok := rw.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	h := rw.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	rw.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Writer{rw: rw, flusher: flusher}, nil
}

// Send writes one event with the given event name and data payload and
// flushes it. Multi-line data is split into one data: line per line as the
// protocol requires.
func (w *Writer) Send(event, data string) error {
	if event != "" {
		if _, err := fmt.Fprintf(w.rw, "event: %s\n", event); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w.rw, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w.rw, "\n"); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

// SendJSON marshals v and sends it as one event.
func (w *Writer) SendJSON(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.Send(event, string(data))
}

// Comment writes an SSE comment line, used as a keep-alive.
func (w *Writer) Comment(text string) error {
	if _, err := fmt.Fprintf(w.rw, ": %s\n\n", text); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}
