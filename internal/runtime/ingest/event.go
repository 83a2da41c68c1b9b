// Package ingest turns upstream messages into records and hands them to the
// subscriber hub.
package ingest

import (
	"context"
	"time"
)

// RawEvent is one upstream event with its delivery metadata.
type RawEvent struct {
	Body           []byte
	SequenceNumber int64
	Offset         string
	EnqueuedTime   time.Time
	PartitionID    string
}

// PartitionContext identifies where a batch came from.
type PartitionContext struct {
	PartitionID   string
	ConsumerGroup string
	Topic         string
}

// Handler receives batches and stream-level errors from the consumer.
type Handler interface {
	// ProcessEvents handles a batch in arrival order. It must not fail the
	// batch because of a single bad event.
	ProcessEvents(ctx context.Context, events []RawEvent, pc PartitionContext)
	// ProcessError is told about errors of the stream itself.
	ProcessError(ctx context.Context, err error, pc PartitionContext)
}

// Broadcaster delivers one value to every subscriber and reports how many
// deliveries succeeded.
type Broadcaster interface {
	Broadcast(ctx context.Context, v any) (int, error)
}
