// Package event exposes the event bus as an SSE firehose.
package event

import (
	"net/http"
	"strings"
	"time"

	"github.com/taskpilot/taskpilot/internal/eventbus"
	"github.com/taskpilot/taskpilot/pkg/sse"
)

type Server struct {
	eventBus *eventbus.Bus
}

func NewServer(eventBus *eventbus.Bus) *Server {
	return &Server{eventBus: eventBus}
}

// StreamEvents relays bus events to the client until it disconnects.
// Optional query params: types (comma-separated event types) and board_id
// narrow the stream. Mounted outside the JSON response middleware.
func (s *Server) StreamEvents(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var types map[eventbus.Type]bool
	if raw := q.Get("types"); raw != "" {
		types = make(map[eventbus.Type]bool)
		for _, t := range strings.Split(raw, ",") {
			types[eventbus.Type(strings.TrimSpace(t))] = true
		}
	}
	boardID := q.Get("board_id")

	subID, events := s.eventBus.Subscribe(64)
	defer s.eventBus.Unsubscribe(subID)

	w, err := sse.NewWriter(rw)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if err := w.Comment("keep-alive"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if types != nil && !types[ev.Type] {
				continue
			}
			if boardID != "" && ev.Metadata["board_id"] != boardID {
				continue
			}
			if err := w.SendJSON(string(ev.Type), ev); err != nil {
				return
			}
		}
	}
}
