// Package jetstream provides a NATS JetStream transport for streamrelay.
// Unlike core NATS, JetStream reports the stream sequence and storage time of
// every message, which the relay uses as the event position.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/drblury/streamrelay/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats-jetstream"

const (
	// DefaultStreamName is the stream used when none is configured.
	DefaultStreamName = "STREAMRELAY"

	// DefaultAckWait is the default ack wait timeout.
	DefaultAckWait = 30 * time.Second

	// DefaultFetchBatch is how many messages one pull request asks for.
	DefaultFetchBatch = 10

	// partitionID is reported for every message; a stream has no partitions.
	partitionID = "0"
)

// ErrClosed is returned when subscribing on a closed transport.
var ErrClosed = errors.New("jetstream: transport is closed")

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSJetStreamCapabilities)
}

// Build creates a new NATS JetStream subscriber.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	t, err := New(Config{
		URL:           cfg.GetNATSURL(),
		ConsumerGroup: cfg.GetKafkaConsumerGroup(),
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{Subscriber: t}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

// Config holds NATS JetStream-specific configuration.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the JetStream stream holding the topics.
	// If empty, defaults to DefaultStreamName.
	StreamName string

	// ConsumerGroup names the durable consumer; relays with the same group
	// share the work.
	ConsumerGroup string

	// AckWait is the duration to wait for acknowledgment.
	AckWait time.Duration

	// FetchBatch is the pull request size.
	FetchBatch int
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.AckWait <= 0 {
		c.AckWait = DefaultAckWait
	}
	if c.FetchBatch <= 0 {
		c.FetchBatch = DefaultFetchBatch
	}
	return c
}

// Transport implements message.Subscriber for NATS JetStream.
type Transport struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config Config
	logger watermill.LoggerAdapter

	subscriptions map[string]*nats.Subscription
	subMu         sync.Mutex

	closed     bool
	closedMu   sync.RWMutex
	closedChan chan struct{}
}

// New connects to NATS and makes sure the stream exists.
func New(cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("streamrelay"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	t := &Transport{
		nc:            nc,
		js:            js,
		config:        cfg,
		logger:        logger,
		subscriptions: make(map[string]*nats.Subscription),
		closedChan:    make(chan struct{}),
	}

	if err := t.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}

	return t, nil
}

func (t *Transport) ensureStream() error {
	if _, err := t.js.StreamInfo(t.config.StreamName); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", t.config.StreamName, err)
	}

	_, err := t.js.AddStream(&nats.StreamConfig{
		Name:      t.config.StreamName,
		Subjects:  []string{t.config.StreamName + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", t.config.StreamName, err)
	}
	t.logger.Info("Created JetStream stream", watermill.LogFields{"stream": t.config.StreamName})
	return nil
}

// Subscribe attaches a durable pull consumer to the topic's subject. Delivery
// starts at new messages, like a fresh Event Hubs reader.
func (t *Transport) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	t.closedMu.RLock()
	closed := t.closed
	t.closedMu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	subject := t.config.StreamName + "." + topic
	durable := ConsumerName(t.config.ConsumerGroup, topic)

	sub, err := t.js.PullSubscribe(subject, durable,
		nats.BindStream(t.config.StreamName),
		nats.DeliverNew(),
		nats.AckExplicit(),
		nats.AckWait(t.config.AckWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	t.subMu.Lock()
	t.subscriptions[topic] = sub
	t.subMu.Unlock()

	output := make(chan *message.Message)
	go t.fetchMessages(ctx, sub, output, topic)

	return output, nil
}

func (t *Transport) fetchMessages(ctx context.Context, sub *nats.Subscription, output chan<- *message.Message, topic string) {
	defer close(output)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.closedChan:
			return
		default:
		}

		msgs, err := sub.Fetch(t.config.FetchBatch, nats.MaxWait(time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				return
			}
			t.logger.Error("Failed to fetch messages", err, watermill.LogFields{"topic": topic})
			continue
		}

		for _, natsMsg := range msgs {
			wmMsg := toMessage(natsMsg)

			select {
			case output <- wmMsg:
			case <-ctx.Done():
				return
			case <-t.closedChan:
				return
			}

			select {
			case <-wmMsg.Acked():
				if err := natsMsg.Ack(); err != nil {
					t.logger.Error("Failed to ack", err, watermill.LogFields{"topic": topic})
				}
			case <-wmMsg.Nacked():
				if err := natsMsg.Nak(); err != nil {
					t.logger.Error("Failed to nak", err, watermill.LogFields{"topic": topic})
				}
			case <-ctx.Done():
				return
			case <-t.closedChan:
				return
			}
		}
	}
}

// toMessage converts a JetStream message, copying headers into metadata and
// stamping the stream position over any producer-supplied one.
func toMessage(natsMsg *nats.Msg) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), natsMsg.Data)

	for k, v := range natsMsg.Header {
		if len(v) > 0 {
			wmMsg.Metadata.Set(k, v[0])
		}
	}

	if meta, err := natsMsg.Metadata(); err == nil {
		transport.SetHeaderPosition(wmMsg, positionFromMetadata(meta))
	}

	return wmMsg
}

func positionFromMetadata(meta *nats.MsgMetadata) transport.Position {
	seq := int64(meta.Sequence.Stream)
	return transport.Position{
		PartitionID:    partitionID,
		SequenceNumber: seq,
		Offset:         fmt.Sprintf("%d", seq),
		EnqueuedTime:   meta.Timestamp,
		Known:          true,
	}
}

// ConsumerName builds a durable consumer name from the group and topic,
// dropping characters NATS does not allow in names.
func ConsumerName(consumerGroup, topic string) string {
	name := "relay"
	if g := sanitize(consumerGroup); g != "" {
		name += "_" + g
	}
	if t := sanitize(topic); t != "" {
		name += "_" + t
	}
	return name
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, s)
}

// Close stops all fetch loops and closes the NATS connection.
func (t *Transport) Close() error {
	t.closedMu.Lock()
	if t.closed {
		t.closedMu.Unlock()
		return nil
	}
	t.closed = true
	close(t.closedChan)
	t.closedMu.Unlock()

	t.subMu.Lock()
	for _, sub := range t.subscriptions {
		_ = sub.Unsubscribe()
	}
	t.subscriptions = make(map[string]*nats.Subscription)
	t.subMu.Unlock()

	t.nc.Close()

	return nil
}
