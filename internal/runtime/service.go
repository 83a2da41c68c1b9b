package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	configpkg "github.com/drblury/streamrelay/internal/runtime/config"
	relayerrors "github.com/drblury/streamrelay/internal/runtime/errors"
	"github.com/drblury/streamrelay/internal/runtime/hub"
	"github.com/drblury/streamrelay/internal/runtime/ingest"
	loggingpkg "github.com/drblury/streamrelay/internal/runtime/logging"
	metricspkg "github.com/drblury/streamrelay/internal/runtime/metrics"
	"github.com/drblury/streamrelay/transport"
)

const (
	MetricsPath = "/metrics"
	StatusPath  = "/api/status"

	shutdownTimeout = 5 * time.Second
)

var listen = func(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to get the defaults.
type ServiceDependencies struct {
	// TransportBuilder replaces transport.Build, which looks the configured
	// PubSubSystem up in the default registry.
	TransportBuilder transport.Builder
	// Registerer and Gatherer default to the Prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	// Tracer defaults to the global OpenTelemetry tracer.
	Tracer trace.Tracer
}

// Service wires the upstream transport, the ingestion loop, the subscriber
// hub and the HTTP server that clients connect to.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	transport    transport.Transport
	capabilities transport.Capabilities
	metrics      *metricspkg.Metrics
	hub          *hub.Hub
	loop         *ingest.Loop
	consumer     *ingest.Consumer
	listener     *hub.Listener
	router       chi.Router

	resourceTracker *resourceTracker
	startedAt       time.Time

	readyOnce sync.Once
	ready     chan struct{}
	addr      net.Addr
}

// TryNewService validates conf, builds the transport and wires every
// component. Nothing connects to subscribers or reads the stream until Start.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, relayerrors.ErrConfigRequired
	}
	if log == nil {
		return nil, relayerrors.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	log.Info("Creating relay service", loggingpkg.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"config":        conf,
	})

	s := &Service{
		Conf:            conf,
		Logger:          log,
		capabilities:    transport.GetCapabilities(conf.PubSubSystem),
		resourceTracker: newResourceTracker(),
		ready:           make(chan struct{}),
	}

	s.metrics = metricspkg.New(deps.Registerer)
	if conf.MetricsEnabled {
		if err := s.metrics.Register(); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	build := deps.TransportBuilder
	if build == nil {
		build = transport.Build
	}
	tr, err := build(ctx, conf, loggingpkg.NewWatermillAdapter(log))
	if err != nil {
		return nil, err
	}
	if tr.Subscriber == nil {
		return nil, relayerrors.ErrSubscriberRequired
	}
	s.transport = tr

	s.hub = hub.New(log, hub.Options{
		SendTimeout:        conf.SendTimeout,
		MaxConcurrentSends: conf.MaxConcurrentSends,
		Metrics:            s.metrics,
	})

	s.loop, err = ingest.NewLoop(s.hub, log, ingest.LoopOptions{
		Metrics: s.metrics,
		Tracer:  deps.Tracer,
	})
	if err != nil {
		_ = tr.Close()
		return nil, err
	}

	s.consumer, err = ingest.NewConsumer(tr.Subscriber, s.loop, log, ingest.ConsumerOptions{
		Topic:         conf.ResolvedTopic(),
		ConsumerGroup: conf.KafkaConsumerGroup,
		BatchSize:     conf.BatchSize,
		BatchLinger:   conf.BatchLinger,
		Position:      tr.Position,
	})
	if err != nil {
		_ = tr.Close()
		return nil, err
	}

	s.listener = hub.NewListener(s.hub, log, hub.ListenerOptions{
		Path:           conf.StreamPath,
		AllowedOrigins: conf.AllowedOrigins,
	})
	s.router = s.newRouter(deps.Gatherer)

	if s.capabilities.NeedsLocalSequence() {
		log.Info("Transport reports no stream positions; sequence numbers are assigned locally", loggingpkg.LogFields{
			"pubsub_system": conf.PubSubSystem,
		})
	}
	return s, nil
}

// NewService is TryNewService for callers that treat a bad setup as fatal.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Service) newRouter(gatherer prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	s.listener.Mount(r)

	if s.Conf.MetricsEnabled {
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.Handle(MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if s.Conf.StatusEnabled {
		r.Get(StatusPath, s.handleGetStatus)
		r.Options(StatusPath, s.handleGetStatus)
	}
	return r
}

// Handler returns the HTTP handler serving the stream path and the optional
// metrics and status endpoints.
func (s *Service) Handler() http.Handler { return s.router }

// Hub returns the subscriber registry.
func (s *Service) Hub() *hub.Hub { return s.hub }

// Transport returns the upstream transport. The channel transport's
// publisher feeds events in-process.
func (s *Service) Transport() transport.Transport { return s.transport }

// Capabilities describes the configured transport.
func (s *Service) Capabilities() transport.Capabilities { return s.capabilities }

// Stats returns the ingestion counters.
func (s *Service) Stats() ingest.Stats { return s.loop.Stats() }

// Addr blocks until Start is listening and returns the bound address.
func (s *Service) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
		return s.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start consumes the stream and serves subscribers until ctx is cancelled or
// either side fails. On the way out the HTTP server stops, every subscriber
// is closed with a going-away status and the transport is closed.
func (s *Service) Start(ctx context.Context) error {
	ln, err := listen(s.Conf.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Conf.ListenAddress, err)
	}
	s.readyOnce.Do(func() {
		s.startedAt = time.Now()
		s.addr = ln.Addr()
		close(s.ready)
	})

	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.consumer.Run(gctx)
		if ingest.IsShutdown(err) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		s.Logger.Info("Serving subscribers", loggingpkg.LogFields{
			"address":     ln.Addr().String(),
			"stream_path": s.listener.Path(),
		})
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		// Shutdown stops new upgrades but does not wait for hijacked
		// WebSocket connections; CloseAll ends those.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.Logger.Error("HTTP server shutdown failed", err, nil)
		}
		s.hub.CloseAll()
		return nil
	})

	err = g.Wait()
	if closeErr := s.transport.Close(); closeErr != nil {
		s.Logger.Error("Failed to close transport", closeErr, nil)
	}
	s.Logger.Info("Relay stopped", loggingpkg.LogFields{"stats": s.loop.Stats()})
	return err
}
