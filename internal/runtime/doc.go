/*
Package runtime assembles the relay.

Service (service.go) builds the configured transport and connects three
parts:
  - ingest.Consumer reads the subscription, acknowledges every message and
    groups same-partition messages into batches
  - ingest.Loop decodes, normalizes and broadcasts each event of a batch
  - hub.Hub fans records out to the WebSocket subscribers accepted by
    hub.Listener

The HTTP server serves the stream path plus the optional /metrics
(Prometheus) and /api/status (status.go) endpoints. Start runs the consumer
and the server until the context ends, then closes every subscriber with a
going-away status.

# Sub-packages

  - config/: configuration, validation and loading
  - errors/: sentinel errors
  - hub/: subscriber registry, WebSocket subscribers and listener
  - ids/: ULID generation for subscriber IDs
  - ingest/: consumer and ingestion loop
  - jsoncodec/: JSON marshaling with sorted keys
  - logging/: logger interface and adapters
  - metrics/: Prometheus collectors
  - record/: payload decoding, the fixed schema and normalization
*/
package runtime
