// Package transporttest provides helpers for testing transports and their callers.
package transporttest

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Config is a transport.Config backed by plain fields.
type Config struct {
	PubSubSystem              string
	KafkaBrokers              []string
	KafkaConsumerGroup        string
	KafkaClientID             string
	EventHubsConnectionString string
	RabbitMQURL               string
	NATSURL                   string
	HTTPServerAddress         string
	AWSRegion                 string
	AWSAccountID              string
	AWSAccessKeyID            string
	AWSSecretAccessKey        string
	AWSEndpoint               string
}

func (c *Config) GetPubSubSystem() string              { return c.PubSubSystem }
func (c *Config) GetKafkaBrokers() []string            { return c.KafkaBrokers }
func (c *Config) GetKafkaConsumerGroup() string        { return c.KafkaConsumerGroup }
func (c *Config) GetKafkaClientID() string             { return c.KafkaClientID }
func (c *Config) GetEventHubsConnectionString() string { return c.EventHubsConnectionString }
func (c *Config) GetRabbitMQURL() string               { return c.RabbitMQURL }
func (c *Config) GetNATSURL() string                   { return c.NATSURL }
func (c *Config) GetHTTPServerAddress() string         { return c.HTTPServerAddress }
func (c *Config) GetAWSRegion() string                 { return c.AWSRegion }
func (c *Config) GetAWSAccountID() string              { return c.AWSAccountID }
func (c *Config) GetAWSAccessKeyID() string            { return c.AWSAccessKeyID }
func (c *Config) GetAWSSecretAccessKey() string        { return c.AWSSecretAccessKey }
func (c *Config) GetAWSEndpoint() string               { return c.AWSEndpoint }

// Subscriber is a message.Subscriber that records its calls and hands out
// channels the test controls.
type Subscriber struct {
	mu         sync.Mutex
	Topics     []string
	Err        error
	Messages   chan *message.Message
	CloseCount int
}

// NewSubscriber returns a Subscriber with an unbuffered message channel.
func NewSubscriber() *Subscriber {
	return &Subscriber{Messages: make(chan *message.Message)}
}

func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Topics = append(s.Topics, topic)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Messages, nil
}

func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCount++
	return nil
}

// SubscribedTopics returns a copy of the topics passed to Subscribe.
func (s *Subscriber) SubscribedTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Topics...)
}
