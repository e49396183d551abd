package dashAuth

import "errors"

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid dashAuth config")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrBuilderUsed is returned when Build is called twice on one Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrMissingAPIBaseURL is returned when a refresh client is requested
	// without Refresh.APIBaseURL.
	ErrMissingAPIBaseURL = errors.New("refresh requires an API base URL")
)
