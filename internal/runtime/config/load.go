package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STREAMRELAY"

// Legacy environment variables of existing deployments.
const (
	EnvConnectionString = "CONNECTION_STRING"
	EnvHubName          = "NAME"
)

// Load builds a Config from the defaults, the optional YAML file at
// configPath and the environment, in increasing order of precedence, and
// validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	d := Defaults()
	v.SetDefault("pubsub_system", d.PubSubSystem)
	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("kafka_client_id", "")
	v.SetDefault("kafka_consumer_group", d.KafkaConsumerGroup)
	v.SetDefault("eventhubs_connection_string", "")
	v.SetDefault("rabbitmq_url", "")
	v.SetDefault("nats_url", "")
	v.SetDefault("http_server_address", "")
	v.SetDefault("aws_region", "")
	v.SetDefault("aws_account_id", "")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")
	v.SetDefault("aws_endpoint", "")
	v.SetDefault("topic", "")
	v.SetDefault("listen_address", d.ListenAddress)
	v.SetDefault("stream_path", d.StreamPath)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("batch_linger", "0s")
	v.SetDefault("send_timeout", d.SendTimeout.String())
	v.SetDefault("max_concurrent_sends", d.MaxConcurrentSends)
	v.SetDefault("metrics_enabled", d.MetricsEnabled)
	v.SetDefault("status_enabled", d.StatusEnabled)
	v.SetDefault("status_cors_allowed_origins", []string{})
	v.SetDefault("log_level", d.LogLevel)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The prefixed name wins over the legacy one.
	_ = v.BindEnv("eventhubs_connection_string", EnvPrefix+"_EVENTHUBS_CONNECTION_STRING", EnvConnectionString)
	_ = v.BindEnv("topic", EnvPrefix+"_TOPIC", EnvHubName)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
