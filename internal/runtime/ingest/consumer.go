package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	relayerrors "github.com/drblury/streamrelay/internal/runtime/errors"
	"github.com/drblury/streamrelay/internal/runtime/logging"
	"github.com/drblury/streamrelay/transport"
)

const (
	DefaultBatchSize = 10

	// defaultPartition is reported when the transport has no partitions.
	defaultPartition = "0"
)

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	Topic         string
	ConsumerGroup string
	// BatchSize caps the number of events handed over at once.
	BatchSize int
	// BatchLinger is how long a batch waits for more events. Zero takes only
	// events that are already waiting.
	BatchLinger time.Duration
	// Position reads a message's position. Defaults to the metadata headers.
	Position func(msg *message.Message) transport.Position
	Now      func() time.Time
}

// Consumer reads the upstream subscription and feeds batches to a Handler.
// Messages are acknowledged on receipt: a record that fails to relay is not
// redelivered.
type Consumer struct {
	sub     message.Subscriber
	handler Handler
	log     logging.ServiceLogger
	opts    ConsumerOptions

	lastSeq map[string]int64
}

// NewConsumer validates its inputs and returns a Consumer.
func NewConsumer(sub message.Subscriber, handler Handler, log logging.ServiceLogger, opts ConsumerOptions) (*Consumer, error) {
	if sub == nil {
		return nil, relayerrors.ErrSubscriberRequired
	}
	if handler == nil {
		return nil, relayerrors.ErrHandlerRequired
	}
	if log == nil {
		return nil, relayerrors.ErrLoggerRequired
	}
	if opts.Topic == "" {
		return nil, relayerrors.ErrTopicRequired
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchLinger < 0 {
		opts.BatchLinger = 0
	}
	if opts.Position == nil {
		opts.Position = func(msg *message.Message) transport.Position {
			pos, _ := transport.HeaderPosition(msg)
			return pos
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Consumer{
		sub:     sub,
		handler: handler,
		log:     log,
		opts:    opts,
		lastSeq: make(map[string]int64),
	}, nil
}

func (c *Consumer) partitionContext(partition string) PartitionContext {
	return PartitionContext{
		PartitionID:   partition,
		ConsumerGroup: c.opts.ConsumerGroup,
		Topic:         c.opts.Topic,
	}
}

// Run subscribes and relays until ctx ends, returning ctx.Err(). A failed
// subscription or one the upstream closes early is reported to the handler
// and returned.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.sub.Subscribe(ctx, c.opts.Topic)
	if err != nil {
		err = fmt.Errorf("subscribe to %s: %w", c.opts.Topic, err)
		c.handler.ProcessError(ctx, err, c.partitionContext(""))
		return err
	}
	c.log.Info("Consuming upstream", logging.LogFields{
		"topic":          c.opts.Topic,
		"consumer_group": c.opts.ConsumerGroup,
		"batch_size":     c.opts.BatchSize,
	})

	var pending *RawEvent
	for {
		var first RawEvent
		if pending != nil {
			first, pending = *pending, nil
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-messages:
				if !ok {
					return c.closed(ctx)
				}
				first = c.toEvent(msg)
			}
		}

		batch, next, open := c.fill(ctx, messages, first)
		c.handler.ProcessEvents(ctx, batch, c.partitionContext(first.PartitionID))
		if !open {
			return c.closed(ctx)
		}
		pending = next
	}
}

// fill grows a batch with events from the same partition. It returns the
// first event of another partition, if one ended the batch, and whether the
// channel is still open.
func (c *Consumer) fill(ctx context.Context, messages <-chan *message.Message, first RawEvent) ([]RawEvent, *RawEvent, bool) {
	batch := []RawEvent{first}

	var linger <-chan time.Time
	if c.opts.BatchLinger > 0 {
		timer := time.NewTimer(c.opts.BatchLinger)
		defer timer.Stop()
		linger = timer.C
	}

	for len(batch) < c.opts.BatchSize {
		var (
			msg *message.Message
			ok  bool
		)
		if linger == nil {
			select {
			case msg, ok = <-messages:
			default:
				return batch, nil, true
			}
		} else {
			select {
			case msg, ok = <-messages:
			case <-linger:
				return batch, nil, true
			case <-ctx.Done():
				return batch, nil, true
			}
		}
		if !ok {
			return batch, nil, false
		}

		ev := c.toEvent(msg)
		if ev.PartitionID != first.PartitionID {
			return batch, &ev, true
		}
		batch = append(batch, ev)
	}
	return batch, nil, true
}

func (c *Consumer) closed(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.handler.ProcessError(ctx, relayerrors.ErrSubscriptionClosed, c.partitionContext(""))
	return relayerrors.ErrSubscriptionClosed
}

// toEvent acknowledges msg and fills in whatever position data the upstream
// did not supply.
func (c *Consumer) toEvent(msg *message.Message) RawEvent {
	msg.Ack()

	pos := c.opts.Position(msg)
	partition := pos.PartitionID
	if partition == "" {
		partition = defaultPartition
	}

	seq := pos.SequenceNumber
	if !pos.Known {
		if last, seen := c.lastSeq[partition]; seen {
			seq = last + 1
		} else {
			seq = 0
		}
	}
	c.lastSeq[partition] = seq

	offset := pos.Offset
	if offset == "" {
		offset = strconv.FormatInt(seq, 10)
	}
	enqueued := pos.EnqueuedTime
	if enqueued.IsZero() {
		enqueued = c.opts.Now()
	}

	return RawEvent{
		Body:           msg.Payload,
		SequenceNumber: seq,
		Offset:         offset,
		EnqueuedTime:   enqueued,
		PartitionID:    partition,
	}
}

// IsShutdown reports whether err is the normal result of Run on cancellation.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
