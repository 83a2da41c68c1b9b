package errors

import sterrors "errors"

var (
	ErrConfigRequired     = sterrors.New("streamrelay: configuration is required")
	ErrLoggerRequired     = sterrors.New("streamrelay: logger is required")
	ErrTopicRequired      = sterrors.New("streamrelay: topic is required")
	ErrHubRequired        = sterrors.New("streamrelay: subscriber hub is required")
	ErrHandlerRequired    = sterrors.New("streamrelay: event handler is required")
	ErrSubscriberRequired = sterrors.New("streamrelay: upstream subscriber is required")

	// ErrSubscriberClosed is returned by Send on a subscriber whose connection is no longer open.
	ErrSubscriberClosed = sterrors.New("streamrelay: subscriber connection is not open")

	// ErrSubscriptionClosed reports that the upstream closed its message channel while the
	// relay was still running.
	ErrSubscriptionClosed = sterrors.New("streamrelay: upstream subscription closed")

	// ErrEventPanicked wraps a recovered panic raised while processing a single event.
	ErrEventPanicked = sterrors.New("streamrelay: event processing panicked")
)

// ConfigValidationError marks errors produced while validating a Config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "streamrelay: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
