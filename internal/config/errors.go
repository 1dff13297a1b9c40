package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a ConfigurationError.
type ErrorKind int

const (
	KindInvalidFile ErrorKind = iota
	KindUnknownBotType
	KindMissingEnv
)

// ConfigurationError reports static misconfiguration. It is never retried.
type ConfigurationError struct {
	Kind ErrorKind

	// Path of the configuration file (KindInvalidFile).
	Path string

	// BotType requested and the keys that exist (KindUnknownBotType).
	BotType   string
	Available []string

	// Missing environment variables, in check order (KindMissingEnv).
	Missing []string

	Err error
}

func (e *ConfigurationError) Error() string {
	switch e.Kind {
	case KindUnknownBotType:
		return fmt.Sprintf("unknown bot type: %s, available: [%s]", e.BotType, strings.Join(e.Available, ", "))
	case KindMissingEnv:
		return "missing required environment variables: " + strings.Join(e.Missing, ", ")
	default:
		if e.Err != nil {
			return fmt.Sprintf("invalid configuration file %s: %v", e.Path, e.Err)
		}
		return fmt.Sprintf("invalid configuration file %s", e.Path)
	}
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
