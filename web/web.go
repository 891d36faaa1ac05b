// Package web serves the kvtap web UI and its server-sent-events feed,
// adapted from the teacher's web package: same embed-and-mux shape and
// the same SSE handler over a broker subscription, minus the
// EXPLAIN/ANALYZE endpoint which has no document-store equivalent.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/kvtap/kvtap/agent"
	"github.com/kvtap/kvtap/broker"
)

//go:embed static
var staticFS embed.FS

// Server serves the kvtap web UI and API endpoints.
type Server struct {
	httpServer *http.Server
	broker     *broker.Broker
}

// New creates a new web Server backed by the given Broker.
func New(b *broker.Broker) *Server {
	s := &Server{broker: b}

	mux := http.NewServeMux()

	sub, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /", http.FileServer(http.FS(sub)))
	mux.HandleFunc("GET /api/events", s.handleSSE)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve starts the HTTP server on the given listener.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type eventJSON struct {
	ID           string  `json:"id"`
	SessionID    string  `json:"session_id"`
	Op           string  `json:"op"`
	Bucket       string  `json:"bucket,omitempty"`
	Key          string  `json:"key"`
	Path         string  `json:"path,omitempty"`
	Partition    int32   `json:"partition"`
	StartTime    string  `json:"start_time"`
	DurationMs   float64 `json:"duration_ms"`
	Status       string  `json:"status"`
	Cas          uint64  `json:"cas,omitempty"`
	Error        string  `json:"error,omitempty"`
	ValuePreview string  `json:"value_preview,omitempty"`
	HasToken     bool    `json:"has_token,omitempty"`
	VBucketUUID  uint64  `json:"vbucket_uuid,omitempty"`
	SeqNo        uint64  `json:"seqno,omitempty"`
	HotKey       bool    `json:"hot_key,omitempty"`
}

func eventToJSON(ev agent.Event) eventJSON {
	out := eventJSON{
		ID:           ev.ID,
		SessionID:    ev.SessionID,
		Op:           ev.Op,
		Bucket:       ev.Bucket,
		Key:          ev.Key,
		Path:         ev.Path,
		Partition:    ev.Partition,
		StartTime:    ev.StartTime.Format(time.RFC3339Nano),
		DurationMs:   float64(ev.Duration.Microseconds()) / 1000,
		Status:       ev.Status.String(),
		Cas:          ev.Cas,
		Error:        ev.Error,
		ValuePreview: ev.ValuePreview,
		HasToken:     ev.HasToken,
		HotKey:       ev.HotKey,
	}
	if ev.HasToken {
		out.VBucketUUID = uint64(ev.Token.VbUUID)
		out.SeqNo = uint64(ev.Token.SeqNo)
	}
	return out
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush() // send headers immediately

	ch, unsub := s.broker.Subscribe()
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(eventToJSON(ev))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
