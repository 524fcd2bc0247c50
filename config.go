// SPDX-License-Identifier: GPL-3.0-or-later

package fido

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Version is the version of this package.
const Version = "1.1.1"

// DefaultUserAgent is the User-Agent added to requests lacking one.
const DefaultUserAgent = "fido/" + Version

// Config holds common configuration for a [*Client] and the
// components it builds (loop, agent selector, dial pipelines).
//
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by [*ConnectFunc].
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// DefaultConnectTimeout applies to requests with a zero ConnectTimeout.
	//
	// Set by [NewConfig] to zero, meaning no bound.
	DefaultConnectTimeout time.Duration

	// DefaultTimeout applies to requests with a zero Timeout.
	//
	// Set by [NewConfig] to zero, meaning no bound.
	DefaultTimeout time.Duration

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// TLSConfig is the base TLS configuration, cloned for each handshake.
	//
	// Set by [NewConfig] to nil, meaning the system roots.
	TLSConfig *tls.Config

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// UserAgent is the User-Agent added when the caller does not set one.
	//
	// Set by [NewConfig] to [DefaultUserAgent].
	UserAgent string
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		ErrClassifier: DefaultErrClassifier,
		TimeNow:       time.Now,
		UserAgent:     DefaultUserAgent,
	}
}

// EnvConfig holds the settings [NewConfigFromEnv] reads from FIDO_*
// environment variables.
type EnvConfig struct {
	// ConnectTimeout is read from FIDO_CONNECT_TIMEOUT (e.g., "5s").
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT"`

	// Timeout is read from FIDO_TIMEOUT (e.g., "30s").
	Timeout time.Duration `envconfig:"TIMEOUT"`

	// UserAgent is read from FIDO_USER_AGENT.
	UserAgent string `envconfig:"USER_AGENT"`
}

// NewConfigFromEnv is like [NewConfig] but overrides the defaults
// with the settings found in the environment.
func NewConfigFromEnv() (*Config, error) {
	var env EnvConfig
	if err := envconfig.Process("fido", &env); err != nil {
		return nil, err
	}
	cfg := NewConfig()
	cfg.DefaultConnectTimeout = env.ConnectTimeout
	cfg.DefaultTimeout = env.Timeout
	if env.UserAgent != "" {
		cfg.UserAgent = env.UserAgent
	}
	return cfg, nil
}
