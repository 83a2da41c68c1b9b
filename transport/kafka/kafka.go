// Package kafka provides a Kafka transport for streamrelay. It also reaches
// Azure Event Hubs through the Kafka-compatible endpoint when an Event Hubs
// connection string is configured.
package kafka

import (
	"context"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/streamrelay/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

// EventHubsAlias selects this transport as well.
const EventHubsAlias = "eventhubs"

// DefaultConsumerGroup matches the default consumer group of an Event Hub.
const DefaultConsumerGroup = "$Default"

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return kafka.NewSubscriber(cfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
	transport.Alias(EventHubsAlias, TransportName)
}

// Build creates a new Kafka subscriber. With an Event Hubs connection string
// the brokers and SASL credentials are derived from it.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	consumerGroup := cfg.GetKafkaConsumerGroup()
	if consumerGroup == "" {
		consumerGroup = DefaultConsumerGroup
	}

	saramaCfg := kafka.DefaultSaramaSubscriberConfig()
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	if id := cfg.GetKafkaClientID(); id != "" {
		saramaCfg.ClientID = id
	}

	brokers := cfg.GetKafkaBrokers()
	if raw := cfg.GetEventHubsConnectionString(); raw != "" {
		cs, err := ParseConnectionString(raw)
		if err != nil {
			return transport.Transport{}, err
		}
		brokers = []string{cs.Broker()}
		applyEventHubsAuth(saramaCfg, raw)
		logger.Info("Using Event Hubs Kafka endpoint", watermill.LogFields{
			"namespace": cs.Namespace,
			"broker":    cs.Broker(),
		})
	}
	if len(brokers) == 0 {
		return transport.Transport{}, fmt.Errorf("kafka: no brokers configured")
	}

	subscriber, err := SubscriberFactory(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			ConsumerGroup:         consumerGroup,
			OverwriteSaramaConfig: saramaCfg,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{
		Subscriber: subscriber,
		Locate:     Locate,
	}, nil
}

// applyEventHubsAuth configures SASL PLAIN over TLS the way Event Hubs expects:
// the literal user "$ConnectionString" and the full connection string as password.
func applyEventHubsAuth(cfg *sarama.Config, connectionString string) {
	cfg.Version = sarama.V1_0_0_0
	cfg.Net.TLS.Enable = true
	cfg.Net.SASL.Enable = true
	cfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	cfg.Net.SASL.User = "$ConnectionString"
	cfg.Net.SASL.Password = connectionString
}

// Locate reads the partition, offset and timestamp the Kafka subscriber put on
// the message context. Event Hubs exposes its sequence number as the Kafka offset.
func Locate(msg *message.Message) (transport.Position, bool) {
	ctx := msg.Context()
	partition, ok := kafka.MessagePartitionFromCtx(ctx)
	if !ok {
		return transport.Position{}, false
	}
	offset, ok := kafka.MessagePartitionOffsetFromCtx(ctx)
	if !ok {
		return transport.Position{}, false
	}
	pos := transport.Position{
		PartitionID:    strconv.FormatInt(int64(partition), 10),
		SequenceNumber: offset,
		Offset:         strconv.FormatInt(offset, 10),
		Known:          true,
	}
	if ts, ok := kafka.MessageTimestampFromCtx(ctx); ok {
		pos.EnqueuedTime = ts
	}
	return pos, true
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.KafkaCapabilities
}
