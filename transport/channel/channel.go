// Package channel provides an in-memory Go channel transport for streamrelay.
// Events are fed through the returned publisher, or through a Feeder that
// numbers them like a partitioned log would. Useful for tests, demos and
// local development without a broker.
package channel

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/streamrelay/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// OutputBuffer is the per-subscription buffer of the in-memory channel.
const OutputBuffer = 256

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build creates a new Go channel transport. Position headers set by the
// producer are honored; everything else is numbered locally by the consumer.
//
// Publish blocks until every subscriber has acked, which keeps delivery in
// publish order. Without it gochannel hands each message to its own
// goroutine. Messages published while nobody is subscribed are dropped.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pub, sub := Factory(gochannel.Config{
		OutputChannelBuffer:            OutputBuffer,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
	return transport.Transport{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}

// ErrNoPublisher is returned by NewFeeder for a transport without a publisher.
var ErrNoPublisher = errors.New("channel: transport has no publisher")

// Feeder publishes payloads to one topic and stamps each with a position,
// numbering every partition from zero. The offset mirrors the sequence number.
// Sends are serialized, so subscribers see each partition in sequence order.
type Feeder struct {
	pub   message.Publisher
	topic string
	now   func() time.Time

	mu   sync.Mutex
	next map[string]int64
}

// NewFeeder returns a Feeder publishing to topic through t.Publisher.
func NewFeeder(t transport.Transport, topic string) (*Feeder, error) {
	if t.Publisher == nil {
		return nil, ErrNoPublisher
	}
	return &Feeder{
		pub:   t.Publisher,
		topic: topic,
		now:   time.Now,
		next:  make(map[string]int64),
	}, nil
}

// Send publishes payload on partition "0".
func (f *Feeder) Send(payload string) (transport.Position, error) {
	return f.SendTo("0", payload)
}

// SendTo publishes payload on the given partition and returns the position
// it was stamped with.
func (f *Feeder) SendTo(partition, payload string) (transport.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seq := f.next[partition]
	pos := transport.Position{
		PartitionID:    partition,
		SequenceNumber: seq,
		Offset:         strconv.FormatInt(seq, 10),
		EnqueuedTime:   f.now(),
		Known:          true,
	}
	msg := message.NewMessage(watermill.NewUUID(), []byte(payload))
	transport.SetHeaderPosition(msg, pos)
	if err := f.pub.Publish(f.topic, msg); err != nil {
		return transport.Position{}, err
	}
	f.next[partition] = seq + 1
	return pos, nil
}
