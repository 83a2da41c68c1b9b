// Package transport defines how streamrelay reaches its upstream event stream.
// Each transport implementation (kafka, rabbitmq, aws, etc.) lives in its own
// sub-package and registers itself with the transport registry.
package transport

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Metadata keys carrying the delivery position of a message. Transports that
// cannot read the position from the broker client expect producers to set them.
const (
	MetadataPartitionID    = "partition_id"
	MetadataSequenceNumber = "sequence_number"
	MetadataOffset         = "offset"
	MetadataEnqueuedTime   = "enqueued_time"
)

// Transport is the subscriber produced by a builder, with an optional
// publisher for transports that can also feed themselves (channel, tests).
type Transport struct {
	Subscriber message.Subscriber
	Publisher  message.Publisher

	// Locate reads the delivery position of a received message. Nil means
	// the position comes from metadata headers only.
	Locate PositionFunc
}

// Close closes the subscriber and, when it is a separate value, the publisher.
func (t Transport) Close() error {
	var errs []error
	if t.Subscriber != nil {
		errs = append(errs, t.Subscriber.Close())
	}
	if t.Publisher != nil && any(t.Publisher) != any(t.Subscriber) {
		errs = append(errs, t.Publisher.Close())
	}
	return errors.Join(errs...)
}

// Position returns the delivery position of msg using Locate, falling back
// to the metadata headers.
func (t Transport) Position(msg *message.Message) Position {
	if t.Locate != nil {
		if pos, ok := t.Locate(msg); ok {
			return pos
		}
	}
	pos, _ := HeaderPosition(msg)
	return pos
}

// Position is where a message sits in the upstream stream.
type Position struct {
	PartitionID    string
	SequenceNumber int64
	Offset         string
	EnqueuedTime   time.Time

	// Known reports whether SequenceNumber was supplied by the upstream.
	Known bool
}

// PositionFunc extracts the position of a message. The boolean is false when
// the transport had nothing to say about this message.
type PositionFunc func(msg *message.Message) (Position, bool)

// HeaderPosition reads the position from the metadata keys above. Unparseable
// values are ignored. The boolean reports whether a sequence number was found.
func HeaderPosition(msg *message.Message) (Position, bool) {
	var pos Position
	if msg == nil {
		return pos, false
	}
	md := msg.Metadata
	pos.PartitionID = md.Get(MetadataPartitionID)
	pos.Offset = md.Get(MetadataOffset)

	if raw := md.Get(MetadataSequenceNumber); raw != "" {
		if seq, err := strconv.ParseInt(raw, 10, 64); err == nil {
			pos.SequenceNumber = seq
			pos.Known = true
		}
	}
	if raw := md.Get(MetadataEnqueuedTime); raw != "" {
		pos.EnqueuedTime = parseEnqueuedTime(raw)
	}
	return pos, pos.Known
}

// SetHeaderPosition writes pos into the metadata keys read by HeaderPosition.
func SetHeaderPosition(msg *message.Message, pos Position) {
	if pos.PartitionID != "" {
		msg.Metadata.Set(MetadataPartitionID, pos.PartitionID)
	}
	if pos.Known {
		msg.Metadata.Set(MetadataSequenceNumber, strconv.FormatInt(pos.SequenceNumber, 10))
	}
	if pos.Offset != "" {
		msg.Metadata.Set(MetadataOffset, pos.Offset)
	}
	if !pos.EnqueuedTime.IsZero() {
		msg.Metadata.Set(MetadataEnqueuedTime, pos.EnqueuedTime.UTC().Format(time.RFC3339Nano))
	}
}

// parseEnqueuedTime accepts RFC 3339 timestamps or epoch milliseconds.
func parseEnqueuedTime(raw string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

// Builder is the function signature for creating a transport from config.
// Each transport package provides a Builder that is registered at init.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by transports.
// Transports see only the values they need, not the full config package.
type Config interface {
	// GetPubSubSystem returns the transport type name.
	GetPubSubSystem() string

	// Kafka / Event Hubs
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string
	GetKafkaClientID() string
	GetEventHubsConnectionString() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string

	// HTTP
	GetHTTPServerAddress() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
