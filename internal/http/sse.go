package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/hperssn/focussync/internal/service"
)

// StreamEvents streams the account's session events as Server-Sent
// Events until the client goes away.
func StreamEvents(hub *service.Hub, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		events, unsubscribe := hub.Subscribe(AccountFrom(r))
		defer unsubscribe()

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(": connected\n\n"))
		flusher.Flush()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}

				data, err := json.Marshal(ev)
				if err != nil {
					logger.Printf("failed to encode event: %v", err)
					continue
				}
				w.Write([]byte("data: "))
				w.Write(data)
				w.Write([]byte("\n\n"))

				flusher.Flush()

			case <-r.Context().Done():
				return
			}
		}
	}
}
