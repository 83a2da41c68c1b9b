// Package streamrelay relays an upstream event stream to WebSocket clients.
//
// Each upstream event body is a list of key=value lines. The relay decodes
// it, flattens the keys, merges the values into a fixed schema of quote
// fields, attaches the delivery metadata (sequence number, offset, enqueue
// time, partition and processing timestamps) under MetaKey and broadcasts
// the resulting JSON object to every connected subscriber.
//
// # Transports
//
// The upstream is read through a Watermill subscriber selected by
// Config.PubSubSystem:
//   - kafka: Kafka, or Azure Event Hubs through its Kafka endpoint when an
//     Event Hubs connection string is configured
//   - nats: NATS core subjects
//   - nats-jetstream: JetStream pull consumers with stream sequence numbers
//   - rabbitmq: durable AMQP queues
//   - aws: SNS topics fanned out to SQS queues, LocalStack included
//   - http: events POSTed to an embedded HTTP server
//   - channel: in-memory Go channels for tests and demos
//
// Transports that do not report stream positions get sequence numbers from
// a per-partition counter.
//
// # Subscribers
//
// Clients connect with a WebSocket to Config.StreamPath (default "/stream").
// Every record is sent as one text message. Slow or broken clients are
// bounded by Config.SendTimeout and never hold up the others. Inbound
// messages are ignored.
//
// # Usage
//
//	cfg, err := streamrelay.LoadConfig("streamrelay.yaml")
//	if err != nil {
//		return err
//	}
//	logger := streamrelay.NewSlogServiceLogger(streamrelay.NewJSONLogger(os.Stdout, cfg.LogLevel, "streamrelay"))
//	svc, err := streamrelay.TryNewService(cfg, logger, ctx, streamrelay.ServiceDependencies{})
//	if err != nil {
//		return err
//	}
//	return svc.Start(ctx)
//
// The cmd/streamrelay binary does exactly this and also honors the
// CONNECTION_STRING and NAME environment variables of existing Event Hubs
// deployments.
package streamrelay
