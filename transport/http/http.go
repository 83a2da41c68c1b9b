// Package http provides an HTTP push transport for streamrelay: producers
// POST events to /<topic> on the configured address.
package http

import (
	"context"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/streamrelay/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// ServerSubscriber is the part of the watermill HTTP subscriber Build relies on.
type ServerSubscriber interface {
	message.Subscriber
	StartHTTPServer() error
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (ServerSubscriber, error) {
	return http.NewSubscriber(addr, config, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

// Build creates a new HTTP subscriber. The server starts after the first
// Subscribe so the topic route exists before requests arrive.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	subscriber, err := SubscriberFactory(
		cfg.GetHTTPServerAddress(),
		http.SubscriberConfig{
			UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{
		Subscriber: &lazyServer{sub: subscriber, logger: logger},
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}

type lazyServer struct {
	sub    ServerSubscriber
	logger watermill.LoggerAdapter
	start  sync.Once
}

func (l *lazyServer) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if !strings.HasPrefix(topic, "/") {
		topic = "/" + topic
	}
	messages, err := l.sub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	l.start.Do(func() {
		go func() {
			if err := l.sub.StartHTTPServer(); err != nil {
				l.logger.Error("HTTP subscriber server stopped", err, nil)
			}
		}()
	})
	return messages, nil
}

func (l *lazyServer) Close() error {
	return l.sub.Close()
}
