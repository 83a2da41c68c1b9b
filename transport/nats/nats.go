// Package nats provides a NATS Core transport for streamrelay.
package nats

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/streamrelay/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

// ClientName identifies the relay's connections on the NATS server.
const ClientName = "streamrelay"

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

// Build creates a new NATS Core subscriber. Without a consumer group every
// relay instance receives every message; with one, relays in the same group
// form a queue group and split the subject between them. Core NATS carries
// no position, so producers may send the position headers.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	clientName := ClientName
	if id := cfg.GetKafkaClientID(); id != "" {
		clientName = id
	}

	subscriber, err := SubscriberFactory(
		nats.SubscriberConfig{
			URL:              cfg.GetNATSURL(),
			QueueGroupPrefix: cfg.GetKafkaConsumerGroup(),
			SubscribersCount: 1,
			Unmarshaler:      &nats.NATSMarshaler{},
			JetStream:        nats.JetStreamConfig{Disabled: true},
			NatsOptions: []nc.Option{
				nc.Name(clientName),
				nc.MaxReconnects(-1),
			},
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{Subscriber: subscriber}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}
