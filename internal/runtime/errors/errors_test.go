package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrConfigRequired", ErrConfigRequired, "streamrelay: configuration is required"},
		{"ErrLoggerRequired", ErrLoggerRequired, "streamrelay: logger is required"},
		{"ErrTopicRequired", ErrTopicRequired, "streamrelay: topic is required"},
		{"ErrHubRequired", ErrHubRequired, "streamrelay: subscriber hub is required"},
		{"ErrHandlerRequired", ErrHandlerRequired, "streamrelay: event handler is required"},
		{"ErrSubscriberRequired", ErrSubscriberRequired, "streamrelay: upstream subscriber is required"},
		{"ErrSubscriberClosed", ErrSubscriberClosed, "streamrelay: subscriber connection is not open"},
		{"ErrSubscriptionClosed", ErrSubscriptionClosed, "streamrelay: upstream subscription closed"},
		{"ErrEventPanicked", ErrEventPanicked, "streamrelay: event processing panicked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestWrappedPanicMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("%w: %v", ErrEventPanicked, "index out of range")
	if !errors.Is(err, ErrEventPanicked) {
		t.Fatalf("expected wrapped panic to match ErrEventPanicked, got %v", err)
	}
}

func TestConfigValidationError(t *testing.T) {
	inner := errors.New("listen address is required")
	err := ConfigValidationError{Err: inner}

	want := "streamrelay: invalid configuration: listen address is required"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if unwrapped := err.Unwrap(); unwrapped != inner {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, inner)
	}
}

func TestNewConfigValidationError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if err := NewConfigValidationError(nil); err != nil {
			t.Errorf("NewConfigValidationError(nil) = %v, want nil", err)
		}
	})

	t.Run("joined errors stay reachable", func(t *testing.T) {
		first := errors.New("kafka: brokers are required")
		second := errors.New("hub: send timeout cannot be negative")
		err := NewConfigValidationError(errors.Join(first, second))

		var cfgErr ConfigValidationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigValidationError, got %T", err)
		}
		if !errors.Is(err, first) || !errors.Is(err, second) {
			t.Error("errors.Is should match every joined error")
		}
	})
}
