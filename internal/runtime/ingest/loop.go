package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	relayerrors "github.com/drblury/streamrelay/internal/runtime/errors"
	"github.com/drblury/streamrelay/internal/runtime/logging"
	"github.com/drblury/streamrelay/internal/runtime/metrics"
	"github.com/drblury/streamrelay/internal/runtime/record"
)

const tracerName = "github.com/drblury/streamrelay/ingest"

// LoopOptions configures a Loop.
type LoopOptions struct {
	Metrics *metrics.Metrics
	// Tracer defaults to the global OpenTelemetry tracer.
	Tracer trace.Tracer
	// Now is the clock used for the start and end timestamps.
	Now func() time.Time
}

// Loop is the Handler that decodes, normalizes and broadcasts every event.
// Events of a batch are processed one at a time in arrival order.
type Loop struct {
	out     Broadcaster
	log     logging.ServiceLogger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time

	received   atomic.Uint64
	processed  atomic.Uint64
	failed     atomic.Uint64
	batches    atomic.Uint64
	deliveries atomic.Uint64
	upstream   atomic.Uint64
	lastEvent  atomic.Int64
}

// Stats is a snapshot of the loop counters.
type Stats struct {
	EventsReceived  uint64    `json:"events_received"`
	EventsProcessed uint64    `json:"events_processed"`
	EventsFailed    uint64    `json:"events_failed"`
	Batches         uint64    `json:"batches"`
	Deliveries      uint64    `json:"deliveries"`
	UpstreamErrors  uint64    `json:"upstream_errors"`
	LastEventAt     time.Time `json:"last_event_at,omitempty"`
}

// NewLoop creates a Loop broadcasting through out.
func NewLoop(out Broadcaster, log logging.ServiceLogger, opts LoopOptions) (*Loop, error) {
	if out == nil {
		return nil, relayerrors.ErrHubRequired
	}
	if log == nil {
		return nil, relayerrors.ErrLoggerRequired
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loop{
		out:     out,
		log:     log,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		now:     opts.Now,
	}, nil
}

// ProcessEvents relays every event of the batch. A failing event is logged
// and counted; the rest of the batch still goes out.
func (l *Loop) ProcessEvents(ctx context.Context, events []RawEvent, pc PartitionContext) {
	if len(events) == 0 {
		return
	}
	l.batches.Add(1)
	l.received.Add(uint64(len(events)))
	l.metrics.BatchReceived(pc.PartitionID, len(events))

	for _, ev := range events {
		partition := ev.PartitionID
		if partition == "" {
			partition = pc.PartitionID
		}

		start := l.now()
		delivered, err := l.processEvent(ctx, ev, partition, start)
		if err != nil {
			l.failed.Add(1)
			l.metrics.EventFailed(partition)
			l.log.Error("Failed to relay event", err, logging.LogFields{
				"partition_id":    partition,
				"sequence_number": ev.SequenceNumber,
				"topic":           pc.Topic,
			})
			continue
		}
		l.processed.Add(1)
		l.deliveries.Add(uint64(delivered))
		l.lastEvent.Store(l.now().UnixNano())
		l.metrics.EventProcessed(partition, l.now().Sub(start))
	}
}

func (l *Loop) processEvent(ctx context.Context, ev RawEvent, partition string, start time.Time) (delivered int, err error) {
	ctx, span := l.tracer.Start(ctx, "ProcessEvent",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.partition.id", partition),
			attribute.Int64("messaging.eventhubs.sequence_number", ev.SequenceNumber),
			attribute.String("messaging.kafka.offset", ev.Offset),
		),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", relayerrors.ErrEventPanicked, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	decoded := record.Decode(string(ev.Body))
	rec := record.Normalize(decoded, record.Meta{
		SequenceNumber: ev.SequenceNumber,
		Offset:         ev.Offset,
		EnqueuedTime:   ev.EnqueuedTime,
		PartitionID:    partition,
		Start:          start,
	})
	// End covers decode and normalize, not the broadcast.
	rec.Meta.End = l.now()

	delivered, err = l.out.Broadcast(ctx, rec)
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int("streamrelay.deliveries", delivered))
	l.log.Debug("Relayed event", logging.LogFields{
		"partition_id":    partition,
		"sequence_number": ev.SequenceNumber,
		"fields":          len(decoded),
		"delivered":       delivered,
	})
	return delivered, nil
}

// ProcessError logs and counts a stream-level error. The consumer owns
// reconnection, so nothing else happens here.
func (l *Loop) ProcessError(ctx context.Context, err error, pc PartitionContext) {
	if err == nil {
		return
	}
	l.upstream.Add(1)
	l.metrics.UpstreamError(pc.PartitionID)
	l.log.Error("Upstream stream error", err, logging.LogFields{
		"partition_id":   pc.PartitionID,
		"consumer_group": pc.ConsumerGroup,
		"topic":          pc.Topic,
	})
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	s := Stats{
		EventsReceived:  l.received.Load(),
		EventsProcessed: l.processed.Load(),
		EventsFailed:    l.failed.Load(),
		Batches:         l.batches.Load(),
		Deliveries:      l.deliveries.Load(),
		UpstreamErrors:  l.upstream.Load(),
	}
	if ns := l.lastEvent.Load(); ns != 0 {
		s.LastEventAt = time.Unix(0, ns)
	}
	return s
}
