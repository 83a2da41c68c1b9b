package kafka

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// kafkaPort is the port of the Kafka endpoint on every Event Hubs namespace.
const kafkaPort = "9093"

// ErrInvalidConnectionString is returned for connection strings without a usable endpoint.
var ErrInvalidConnectionString = errors.New("kafka: invalid event hubs connection string")

// ConnectionString is the parsed form of an Event Hubs connection string:
// "Endpoint=sb://<ns>.servicebus.windows.net/;SharedAccessKeyName=...;SharedAccessKey=...;EntityPath=<hub>".
type ConnectionString struct {
	Namespace           string
	Host                string
	SharedAccessKeyName string
	SharedAccessKey     string
	EntityPath          string
}

// Broker is the Kafka bootstrap address of the namespace.
func (c ConnectionString) Broker() string {
	return c.Host + ":" + kafkaPort
}

// ParseConnectionString parses an Event Hubs connection string. Keys are
// matched case-insensitively; unknown keys are ignored.
func ParseConnectionString(raw string) (ConnectionString, error) {
	var cs ConnectionString
	var endpoint string
	for _, part := range strings.Split(raw, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "endpoint":
			endpoint = value
		case "sharedaccesskeyname":
			cs.SharedAccessKeyName = value
		case "sharedaccesskey":
			cs.SharedAccessKey = value
		case "entitypath":
			cs.EntityPath = value
		}
	}
	if endpoint == "" {
		return ConnectionString{}, fmt.Errorf("%w: missing Endpoint", ErrInvalidConnectionString)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return ConnectionString{}, fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}
	if u.Hostname() == "" {
		return ConnectionString{}, fmt.Errorf("%w: endpoint %q has no host", ErrInvalidConnectionString, endpoint)
	}
	cs.Host = u.Hostname()
	cs.Namespace, _, _ = strings.Cut(cs.Host, ".")
	return cs, nil
}
