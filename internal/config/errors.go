package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidHomeURL is returned when the homepage is not an absolute http(s) URL.
	ErrInvalidHomeURL = errors.New("invalid home URL: must be an absolute http or https URL")

	// ErrEmptyLinkSelector is returned when no article link selector is configured.
	ErrEmptyLinkSelector = errors.New("invalid link selector: must not be empty")

	// ErrEmptyOutputDir is returned when the output directory is empty.
	ErrEmptyOutputDir = errors.New("invalid output directory: must not be empty")

	// ErrInvalidPasswordRange is returned when [min, max) is empty or negative.
	ErrInvalidPasswordRange = errors.New("invalid password range: min must be non-negative and below max")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the download concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingTransports is returned when both --tor and --proxy are set.
	ErrConflictingTransports = errors.New("conflicting transports: --tor and --proxy cannot be used together")
)
