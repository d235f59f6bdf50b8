package errors

import sterrors "errors"

var (
	ErrStrategyNameRequired = sterrors.New("hookflow: strategy name is required")
	ErrUnknownStrategy      = sterrors.New("hookflow: could not find matching strategy")
	ErrWrongArgumentCount   = sterrors.New("hookflow: wrong number of arguments")
	ErrInvalidOption        = sterrors.New("hookflow: invalid option value")
	ErrConfigureInput       = sterrors.New("hookflow: configure requires a mapping or a function")
	ErrBackendRequired      = sterrors.New("hookflow: notification backend is required")
	ErrSubscriberRequired   = sterrors.New("hookflow: subscriber function is required")
	ErrPublisherRequired    = sterrors.New("hookflow: publisher is required")
	ErrTopicRequired        = sterrors.New("hookflow: topic is required")
	ErrPayloadTooLarge      = sterrors.New("hookflow: payload exceeds transport message size")
	ErrDispatchPanic        = sterrors.New("hookflow: strategy panicked during dispatch")
	ErrHookPanic            = sterrors.New("hookflow: dispatch hook panicked")
	ErrMatcherPanic         = sterrors.New("hookflow: request matcher panicked")
	ErrRelayRunning         = sterrors.New("hookflow: relay is already running")
)

// ConfigValidationError marks a settings document that failed validation.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "hookflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
