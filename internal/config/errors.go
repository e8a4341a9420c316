package config

import "errors"

// Sentinel kinds for configuration errors; callers match with errors.Is.
var (
	// ErrInvalidConfig reports a value outside its allowed range.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig reports an unreadable file, bad YAML or an undecodable env value.
	ErrLoadConfig = errors.New("load config failed")
)
