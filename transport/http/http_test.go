package http

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	watermillhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/streamrelay/transport"
	"github.com/drblury/streamrelay/transport/transporttest"
)

func TestRegistered(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.Equal(t, "http", transport.GetCapabilities(TransportName).Name)
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, transport.HTTPCapabilities, Capabilities())
}

type fakeServerSubscriber struct {
	mu      sync.Mutex
	topics  []string
	started chan struct{}
	closed  bool
}

func newFakeServerSubscriber() *fakeServerSubscriber {
	return &fakeServerSubscriber{started: make(chan struct{}, 4)}
}

func (f *fakeServerSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return make(chan *message.Message), nil
}

func (f *fakeServerSubscriber) StartHTTPServer() error {
	f.started <- struct{}{}
	return nil
}

func (f *fakeServerSubscriber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestBuild(t *testing.T) {
	t.Run("starts server once after subscribing", func(t *testing.T) {
		originalSubFactory := SubscriberFactory
		defer func() { SubscriberFactory = originalSubFactory }()

		fake := newFakeServerSubscriber()
		SubscriberFactory = func(addr string, config watermillhttp.SubscriberConfig, logger watermill.LoggerAdapter) (ServerSubscriber, error) {
			assert.Equal(t, ":9000", addr)
			assert.NotNil(t, config.UnmarshalMessageFunc)
			return fake, nil
		}

		tr, err := Build(context.Background(), &transporttest.Config{HTTPServerAddress: ":9000"}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.Nil(t, tr.Publisher)

		select {
		case <-fake.started:
			t.Fatal("server started before subscribe")
		default:
		}

		_, err = tr.Subscriber.Subscribe(context.Background(), "quotes")
		require.NoError(t, err)
		_, err = tr.Subscriber.Subscribe(context.Background(), "/trades")
		require.NoError(t, err)

		select {
		case <-fake.started:
		case <-time.After(time.Second):
			t.Fatal("server not started")
		}
		time.Sleep(20 * time.Millisecond)
		assert.Len(t, fake.started, 0, "server started more than once")

		fake.mu.Lock()
		assert.Equal(t, []string{"/quotes", "/trades"}, fake.topics)
		fake.mu.Unlock()

		require.NoError(t, tr.Close())
		assert.True(t, fake.closed)
	})

	t.Run("returns error when subscriber factory fails", func(t *testing.T) {
		originalSubFactory := SubscriberFactory
		defer func() { SubscriberFactory = originalSubFactory }()

		SubscriberFactory = func(addr string, config watermillhttp.SubscriberConfig, logger watermill.LoggerAdapter) (ServerSubscriber, error) {
			return nil, errors.New("subscriber error")
		}

		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "subscriber error")
	})
}
