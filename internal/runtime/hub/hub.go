// Package hub keeps the set of live subscribers and fans records out to them.
package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/drblury/streamrelay/internal/runtime/ids"
	"github.com/drblury/streamrelay/internal/runtime/jsoncodec"
	"github.com/drblury/streamrelay/internal/runtime/logging"
	"github.com/drblury/streamrelay/internal/runtime/metrics"
)

const (
	// DefaultSendTimeout bounds a single send when Options leave it unset.
	DefaultSendTimeout = 5 * time.Second
	// DefaultMaxConcurrentSends caps the sends of one broadcast when Options
	// leave it unset.
	DefaultMaxConcurrentSends = 64
)

// Subscriber is one downstream client. Implementations must be safe for
// concurrent use.
type Subscriber interface {
	ID() string
	// Open reports whether the connection can currently accept messages.
	Open() bool
	Send(ctx context.Context, data []byte) error
	Close() error
}

// Options tunes broadcast behavior.
type Options struct {
	// SendTimeout bounds each send. Zero or negative means DefaultSendTimeout.
	SendTimeout time.Duration
	// MaxConcurrentSends caps how many sends of one broadcast run at once.
	MaxConcurrentSends int
	Metrics            *metrics.Metrics
}

// Hub is the subscriber registry. Membership changes only through Register
// and Unregister; Broadcast never adds or removes subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]Subscriber

	log           logging.ServiceLogger
	sendTimeout   time.Duration
	maxConcurrent int
	metrics       *metrics.Metrics
}

// BroadcastResult counts the outcome of one broadcast.
type BroadcastResult struct {
	Delivered int
	Failed    int
	Skipped   int
}

// New creates an empty hub.
func New(log logging.ServiceLogger, opts Options) *Hub {
	if log == nil {
		log = logging.Nop()
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.MaxConcurrentSends <= 0 {
		opts.MaxConcurrentSends = DefaultMaxConcurrentSends
	}
	return &Hub{
		subs:          make(map[string]Subscriber),
		log:           log,
		sendTimeout:   opts.SendTimeout,
		maxConcurrent: opts.MaxConcurrentSends,
		metrics:       opts.Metrics,
	}
}

// Register adds sub. It returns false if a subscriber with the same ID is
// already registered.
func (h *Hub) Register(sub Subscriber) bool {
	if sub == nil {
		return false
	}
	h.mu.Lock()
	if _, ok := h.subs[sub.ID()]; ok {
		h.mu.Unlock()
		return false
	}
	h.subs[sub.ID()] = sub
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	return true
}

// Unregister removes sub. Only the call that actually removed it returns true.
func (h *Hub) Unregister(sub Subscriber) bool {
	if sub == nil {
		return false
	}
	h.mu.Lock()
	cur, ok := h.subs[sub.ID()]
	if !ok || cur != sub {
		h.mu.Unlock()
		return false
	}
	delete(h.subs, sub.ID())
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	return true
}

// OnConnect is called by the listener once a client connection is established.
func (h *Hub) OnConnect(sub Subscriber) {
	if !h.Register(sub) {
		h.log.Debug("Subscriber already registered", logging.LogFields{"subscriber_id": sub.ID()})
		return
	}
	h.log.Info("Subscriber connected", h.subscriberFields(sub))
}

// OnDisconnect is called by the listener when a client connection ends.
func (h *Hub) OnDisconnect(sub Subscriber) {
	if !h.Unregister(sub) {
		return
	}
	fields := h.subscriberFields(sub)
	if at, ok := ids.ConnectedAt(sub.ID()); ok {
		fields["connected_for"] = time.Since(at).Round(time.Millisecond).String()
	}
	h.log.Info("Subscriber disconnected", fields)
}

func (h *Hub) subscriberFields(sub Subscriber) logging.LogFields {
	fields := logging.LogFields{
		"subscriber_id": sub.ID(),
		"subscribers":   h.Len(),
	}
	if r, ok := sub.(interface{ RemoteAddr() string }); ok {
		fields["remote_addr"] = r.RemoteAddr()
	}
	return fields
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) snapshot() []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		out = append(out, sub)
	}
	return out
}

// Broadcast serializes v once and sends the bytes to every open subscriber.
// It returns the number of successful deliveries. The only error is a
// serialization failure, in which case nothing is sent.
func (h *Hub) Broadcast(ctx context.Context, v any) (int, error) {
	data, err := jsoncodec.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode broadcast payload: %w", err)
	}
	return h.BroadcastBytes(ctx, data).Delivered, nil
}

// BroadcastBytes sends data to every open subscriber registered when the call
// starts. Sends run concurrently, each bounded by the send timeout; failures
// are logged and counted but never stop the other sends.
func (h *Hub) BroadcastBytes(ctx context.Context, data []byte) BroadcastResult {
	var delivered, failed, skipped atomic.Int64

	var g errgroup.Group
	g.SetLimit(h.maxConcurrent)
	for _, sub := range h.snapshot() {
		if !sub.Open() {
			skipped.Add(1)
			continue
		}
		g.Go(func() error {
			if err := h.send(ctx, sub, data); err != nil {
				failed.Add(1)
				h.log.Error("Failed to send to subscriber", err, logging.LogFields{"subscriber_id": sub.ID()})
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := BroadcastResult{
		Delivered: int(delivered.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}
	h.metrics.Broadcast(res.Delivered, res.Failed, res.Skipped)
	return res
}

func (h *Hub) send(ctx context.Context, sub Subscriber, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.sendTimeout)
	defer cancel()
	return sub.Send(ctx, data)
}

// CloseAll unregisters and closes every subscriber. Used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	subs := make([]Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[string]Subscriber)
	h.mu.Unlock()

	h.metrics.SetSubscribers(0)

	var g errgroup.Group
	g.SetLimit(h.maxConcurrent)
	for _, sub := range subs {
		g.Go(func() error {
			if err := shutdown(sub); err != nil {
				h.log.Debug("Subscriber close failed", logging.LogFields{"subscriber_id": sub.ID(), "error": err.Error()})
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(subs) > 0 {
		h.log.Info("Closed all subscribers", logging.LogFields{"subscribers": len(subs)})
	}
}

// shutdown prefers a going-away close when the subscriber offers one.
func shutdown(sub Subscriber) error {
	if s, ok := sub.(interface{ CloseGoingAway(reason string) error }); ok {
		return s.CloseGoingAway("server shutting down")
	}
	return sub.Close()
}
