package transport

// Capabilities describes what a transport backend offers the relay.
// They are reported on the status endpoint.
type Capabilities struct {
	// Name is the human-readable name of the transport.
	Name string `json:"name"`

	// SupportsOrdering indicates messages within a partition arrive in order.
	SupportsOrdering bool `json:"supports_ordering"`

	// SupportsPartitioning indicates the upstream is split into partitions.
	SupportsPartitioning bool `json:"supports_partitioning"`

	// SupportsConsumerGroups indicates several relays can share the load.
	SupportsConsumerGroups bool `json:"supports_consumer_groups"`

	// ReportsPosition indicates sequence numbers and enqueue times come from
	// the broker instead of producer headers or local counters.
	ReportsPosition bool `json:"reports_position"`

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64 `json:"max_message_size"`
}

// NeedsLocalSequence returns true when the relay must number events itself
// unless producers send position headers.
func (c Capabilities) NeedsLocalSequence() bool {
	return !c.ReportsPosition
}

// Predefined capability sets for the built-in transports.
var (
	// ChannelCapabilities for in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
	}

	// KafkaCapabilities for Kafka and Event Hubs' Kafka endpoint.
	KafkaCapabilities = Capabilities{
		Name:                   "kafka",
		SupportsOrdering:       true,
		SupportsPartitioning:   true,
		SupportsConsumerGroups: true,
		ReportsPosition:        true,
		MaxMessageSize:         1048576, // Event Hubs standard tier limit
	}

	// RabbitMQCapabilities for RabbitMQ/AMQP transport.
	RabbitMQCapabilities = Capabilities{
		Name:                   "rabbitmq",
		SupportsOrdering:       true,
		SupportsConsumerGroups: true,
	}

	// NATSCapabilities for NATS Core transport.
	NATSCapabilities = Capabilities{
		Name:           "nats",
		MaxMessageSize: 1048576, // Default 1MB
	}

	// NATSJetStreamCapabilities for NATS JetStream transport.
	NATSJetStreamCapabilities = Capabilities{
		Name:                   "nats-jetstream",
		SupportsOrdering:       true,
		SupportsConsumerGroups: true,
		ReportsPosition:        true,
		MaxMessageSize:         1048576, // Default 1MB
	}

	// AWSCapabilities for AWS SNS/SQS transport.
	AWSCapabilities = Capabilities{
		Name:                   "aws",
		SupportsConsumerGroups: true,
		MaxMessageSize:         262144, // 256KB
	}

	// HTTPCapabilities for HTTP push transport.
	HTTPCapabilities = Capabilities{
		Name: "http",
	}
)

// GetCapabilities returns the capabilities for a transport by name from the default registry.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
