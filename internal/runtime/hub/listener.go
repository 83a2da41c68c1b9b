package hub

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/drblury/streamrelay/internal/runtime/logging"
)

// DefaultStreamPath is the path clients connect to.
const DefaultStreamPath = "/stream"

// ListenerOptions configures the WebSocket listener.
type ListenerOptions struct {
	// Path is the only path that upgrades. Defaults to DefaultStreamPath.
	Path string
	// AllowedOrigins are origin host patterns accepted on upgrade. Empty
	// accepts any origin.
	AllowedOrigins []string
}

// Listener accepts WebSocket clients on the stream path and hands them to the hub.
type Listener struct {
	hub    *Hub
	log    logging.ServiceLogger
	path   string
	accept *websocket.AcceptOptions
}

// NewListener creates a listener bound to h.
func NewListener(h *Hub, log logging.ServiceLogger, opts ListenerOptions) *Listener {
	if log == nil {
		log = logging.Nop()
	}
	path := opts.Path
	if path == "" {
		path = DefaultStreamPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	accept := &websocket.AcceptOptions{}
	if len(opts.AllowedOrigins) == 0 {
		accept.InsecureSkipVerify = true
	} else {
		accept.OriginPatterns = opts.AllowedOrigins
	}

	return &Listener{hub: h, log: log, path: path, accept: accept}
}

// Path returns the stream path.
func (l *Listener) Path() string { return l.path }

// Mount registers the stream route on r. Every other path is left to the
// router's not-found handler.
func (l *Listener) Mount(r chi.Router) {
	r.Get(l.path, l.ServeHTTP)
}

// Router returns a router serving only the stream path.
func (l *Listener) Router() chi.Router {
	r := chi.NewRouter()
	l.Mount(r)
	return r
}

// ServeHTTP upgrades the request and blocks until the client goes away.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, l.accept)
	if err != nil {
		l.log.Debug("WebSocket upgrade rejected", logging.LogFields{
			"remote_addr": r.RemoteAddr,
			"error":       err.Error(),
		})
		return
	}

	sub := NewWebSocketSubscriber(conn, r.RemoteAddr)
	l.hub.OnConnect(sub)
	defer func() {
		l.hub.OnDisconnect(sub)
		_ = sub.Close()
	}()

	// Inbound messages are ignored; reading keeps control frames flowing and
	// surfaces the disconnect.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}
