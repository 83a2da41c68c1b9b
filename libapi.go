package streamrelay

import (
	runtimepkg "github.com/drblury/streamrelay/internal/runtime"
	configpkg "github.com/drblury/streamrelay/internal/runtime/config"
	errspkg "github.com/drblury/streamrelay/internal/runtime/errors"
	hubpkg "github.com/drblury/streamrelay/internal/runtime/hub"
	idspkg "github.com/drblury/streamrelay/internal/runtime/ids"
	ingestpkg "github.com/drblury/streamrelay/internal/runtime/ingest"
	jsoncodec "github.com/drblury/streamrelay/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/streamrelay/internal/runtime/logging"
	recordpkg "github.com/drblury/streamrelay/internal/runtime/record"
	"github.com/drblury/streamrelay/transport"
	_ "github.com/drblury/streamrelay/transport/transports"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	Status              = runtimepkg.Status
	ResourceUsage       = runtimepkg.ResourceUsage

	Record = recordpkg.Record
	Meta   = recordpkg.Meta
	Field  = recordpkg.Field

	Hub             = hubpkg.Hub
	HubOptions      = hubpkg.Options
	Subscriber      = hubpkg.Subscriber
	BroadcastResult = hubpkg.BroadcastResult
	Listener        = hubpkg.Listener
	ListenerOptions = hubpkg.ListenerOptions

	RawEvent         = ingestpkg.RawEvent
	PartitionContext = ingestpkg.PartitionContext
	EventHandler     = ingestpkg.Handler
	Loop             = ingestpkg.Loop
	LoopOptions      = ingestpkg.LoopOptions
	Consumer         = ingestpkg.Consumer
	ConsumerOptions  = ingestpkg.ConsumerOptions
	Stats            = ingestpkg.Stats

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError

	Transport         = transport.Transport
	TransportBuilder  = transport.Builder
	TransportConfig   = transport.Config
	TransportRegistry = transport.Registry
	Capabilities      = transport.Capabilities
	Position          = transport.Position
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	DefaultConfig  = configpkg.Defaults
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	Decode     = recordpkg.Decode
	FlattenKey = recordpkg.FlattenKey
	Normalize  = recordpkg.Normalize
	Schema     = recordpkg.Schema

	NewHub      = hubpkg.New
	NewListener = hubpkg.NewListener
	NewLoop     = ingestpkg.NewLoop
	NewConsumer = ingestpkg.NewConsumer

	GetCapabilities          = transport.GetCapabilities
	DefaultTransportRegistry = transport.DefaultRegistry
	RegisterTransport        = transport.Register
	BuildTransport           = transport.Build
	SetHeaderPosition        = transport.SetHeaderPosition

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal
	Encode    = jsoncodec.Encode

	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrTopicRequired      = errspkg.ErrTopicRequired
	ErrHubRequired        = errspkg.ErrHubRequired
	ErrHandlerRequired    = errspkg.ErrHandlerRequired
	ErrSubscriberRequired = errspkg.ErrSubscriberRequired
	ErrSubscriberClosed   = errspkg.ErrSubscriberClosed
	ErrSubscriptionClosed = errspkg.ErrSubscriptionClosed
	ErrEventPanicked      = errspkg.ErrEventPanicked
	ErrUnknownTransport   = transport.ErrUnknownTransport

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewJSONLogger        = loggingpkg.NewJSONLogger

	CreateULID = idspkg.CreateULID
)

const (
	// MetaKey is the record key holding the delivery metadata block.
	MetaKey = recordpkg.MetaKey

	DefaultStreamPath = hubpkg.DefaultStreamPath
	MetricsPath       = runtimepkg.MetricsPath
	StatusPath        = runtimepkg.StatusPath
)
