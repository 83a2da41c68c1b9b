package runtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/drblury/streamrelay/internal/runtime/ingest"
	"github.com/drblury/streamrelay/internal/runtime/jsoncodec"
	"github.com/drblury/streamrelay/transport"
)

// Status is the payload of the status endpoint.
type Status struct {
	Transport     transport.Capabilities `json:"transport"`
	Topic         string                 `json:"topic"`
	ConsumerGroup string                 `json:"consumer_group,omitempty"`
	StreamPath    string                 `json:"stream_path"`
	Subscribers   int                    `json:"subscribers"`
	Events        ingest.Stats           `json:"events"`
	Resources     ResourceUsage          `json:"resources"`
	StartedAt     time.Time              `json:"started_at,omitempty"`
	UptimeSeconds float64                `json:"uptime_seconds"`
}

// Status returns a snapshot of the relay.
func (s *Service) Status() Status {
	st := Status{
		Transport:     s.capabilities,
		Topic:         s.Conf.ResolvedTopic(),
		ConsumerGroup: s.Conf.KafkaConsumerGroup,
		StreamPath:    s.listener.Path(),
		Subscribers:   s.hub.Len(),
		Events:        s.loop.Stats(),
		Resources:     s.getResourceTracker().Snapshot(),
	}
	select {
	case <-s.ready:
		st.StartedAt = s.startedAt
		st.UptimeSeconds = time.Since(s.startedAt).Seconds()
	default:
	}
	return st
}

func (s *Service) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if len(s.Conf.StatusCORSAllowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if allowed := s.getAllowedCORSOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := jsoncodec.Encode(w, s.Status()); err != nil {
		s.Logger.Error("Failed to encode status", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// getAllowedCORSOrigin returns the Access-Control-Allow-Origin value for
// requestOrigin, or "" when it is not allowed.
func (s *Service) getAllowedCORSOrigin(requestOrigin string) string {
	for _, allowed := range s.Conf.StatusCORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
