package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"firedesk/internal/firebreak"
)

// HandleWatchSSE streams run events as Server-Sent Events.
func (s *Service) HandleWatchSSE(w http.ResponseWriter, r *http.Request) {
	// Extract run_id from path: /api/firebreak/watch/{run_id}
	runID := strings.TrimPrefix(r.URL.Path, "/api/firebreak/watch/")
	if runID == "" {
		http.Error(w, "run_id required", http.StatusBadRequest)
		return
	}

	eventCh, ok := s.analysis.EventChannel(runID)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				// Channel closed, send final message
				fmt.Fprintf(w, "event: close\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()

			if event.Type == firebreak.EventCompleted || event.Type == firebreak.EventErrored {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is enforced by the surrounding middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// HandleWatchWS streams run events over a websocket for clients that cannot
// consume SSE.
func (s *Service) HandleWatchWS(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/api/firebreak/ws/")
	if runID == "" {
		http.Error(w, "run_id required", http.StatusBadRequest)
		return
	}

	eventCh, ok := s.analysis.EventChannel(runID)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("watch ws upgrade for run %s: %v", runID, err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("watch ws write for run %s: %v", runID, err)
				return
			}
			if event.Type == firebreak.EventCompleted || event.Type == firebreak.EventErrored {
				return
			}
		}
	}
}
