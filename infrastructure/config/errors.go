package config

import "errors"

// Configuration validation errors returned by Config.Validate and Config.ValidateServer.
var (
	// ErrMissingSecret is returned when the HTTP intake is started without a shared secret.
	ErrMissingSecret = errors.New("missing secret: set server.secret or QUIZSOLVER_SECRET")

	// ErrMissingListenAddress is returned when the HTTP intake has no address to bind.
	ErrMissingListenAddress = errors.New("missing listen address")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDelay is returned when a settle delay is negative. Use 0 for no delay.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidRetries is returned when a retry count is negative.
	ErrInvalidRetries = errors.New("invalid retry count: must be non-negative")

	// ErrInvalidMaxSteps is returned when the step limit is negative. Use 0 for no limit.
	ErrInvalidMaxSteps = errors.New("invalid max steps: must be non-negative")

	// ErrInvalidMaxSessions is returned when the session cap is not positive.
	ErrInvalidMaxSessions = errors.New("invalid max sessions: must be positive")

	// ErrUnknownEngine is returned for a browser engine other than playwright or rod.
	ErrUnknownEngine = errors.New("unknown browser engine: use playwright or rod")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: use text or json")

	// ErrInvalidFallbackURL is returned when the fallback base URL is not an absolute http(s) URL.
	ErrInvalidFallbackURL = errors.New("invalid fallback base URL: must be absolute http or https")

	// ErrConfigNotFound is returned when an explicitly named configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
