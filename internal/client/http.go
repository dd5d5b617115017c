package client

/*
censeek — domain discovery toolkit for the Censys Search API
Copyright (C) 2025  Pepijn van der Stap <censeek@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

/*
Package client provides a configurable HTTP client shared by the parts of
censeek that talk to remote services, primarily the Censys Search API.

The package manages a single global HTTP client instance that can be
configured once and then retrieved by multiple callers. This promotes reuse
of TCP connections and consistent timeout behavior across concurrent paged
searches.
*/

import (
	"net"
	"net/http"
	"sync"
	"time"
)

var (
	// defaultDialTimeout specifies the default timeout for establishing a new connection.
	defaultDialTimeout = 5 * time.Second
	// defaultKeepAliveTimeout specifies the default keep-alive period for an active network connection.
	defaultKeepAliveTimeout = 60 * time.Second
	// defaultIdleConnTimeout is the maximum amount of time an idle (keep-alive) connection
	// will remain idle before closing itself. Paged searches can leave seconds-long gaps
	// between requests, so idle connections are kept around generously.
	defaultIdleConnTimeout = 90 * time.Second
	// defaultMaxIdleConns controls the maximum number of idle (keep-alive) connections across all hosts.
	defaultMaxIdleConns = 20
	// defaultMaxIdleConnsPerHost is the maximum number of idle connections kept per host.
	// The tool only ever talks to one API host with a couple of concurrent streams.
	defaultMaxIdleConnsPerHost = 10
	// defaultMaxConnsPerHost bounds total connections per host including dials in flight.
	defaultMaxConnsPerHost = 10
	// defaultRequestTimeout specifies the default timeout for a complete HTTP request.
	// Large result pages can take a while to stream, so this is deliberately roomy.
	defaultRequestTimeout = 60 * time.Second

	// sharedClient is the global HTTP client instance used by the application.
	// It is lazily initialized on first use or when explicitly configured.
	sharedClient *http.Client
	// sharedClientLock protects access to sharedClient and clientInitialized.
	sharedClientLock sync.RWMutex
	// clientInitialized indicates whether the sharedClient has been initialized.
	clientInitialized bool
)

// Config holds configuration parameters for the HTTP client.
// A zero-value Config results in default settings being used.
type Config struct {
	// DialTimeout is the maximum duration for establishing a new connection.
	DialTimeout time.Duration
	// KeepAliveTimeout specifies the keep-alive period for an active network connection.
	KeepAliveTimeout time.Duration
	// IdleConnTimeout is the maximum amount of time an idle (keep-alive) connection
	// will remain idle before closing itself.
	IdleConnTimeout time.Duration
	// MaxIdleConns controls the maximum number of idle (keep-alive) connections across all hosts.
	MaxIdleConns int
	// MaxIdleConnsPerHost is the maximum number of idle (keep-alive) connections to keep per host.
	MaxIdleConnsPerHost int
	// MaxConnsPerHost controls the maximum number of connections per host, including connections
	// in the dialing, active, and idle states. On limit violation, dials will block.
	MaxConnsPerHost int
	// RequestTimeout is the timeout for the entire HTTP request, including connection time,
	// all redirects, and reading the response body.
	RequestTimeout time.Duration
}

// DefaultConfig returns a new Config struct populated with default HTTP client settings.
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:         defaultDialTimeout,
		KeepAliveTimeout:    defaultKeepAliveTimeout,
		IdleConnTimeout:     defaultIdleConnTimeout,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		RequestTimeout:      defaultRequestTimeout,
	}
}

// InitHTTPClient initializes or reconfigures the shared global HTTP client with the provided
// configuration. If a nil config is provided, it uses DefaultConfig().
// This function is thread-safe.
func InitHTTPClient(config *Config) {
	sharedClientLock.Lock()
	defer sharedClientLock.Unlock()

	if config == nil {
		config = DefaultConfig()
	}

	// Callers may hand over a partially filled Config; fill the gaps
	// rather than trusting every field was set.
	if config.DialTimeout == 0 {
		config.DialTimeout = defaultDialTimeout
	}
	if config.KeepAliveTimeout == 0 {
		config.KeepAliveTimeout = defaultKeepAliveTimeout
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = defaultIdleConnTimeout
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = defaultMaxIdleConns
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
	if config.MaxConnsPerHost == 0 {
		config.MaxConnsPerHost = defaultMaxConnsPerHost
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = defaultRequestTimeout
	}

	// If we're reinitializing an existing client, close idle connections on the old transport.
	// This helps avoid leaking idle keep-alive connections across reconfigs.
	if sharedClient != nil {
		if oldTransport, ok := sharedClient.Transport.(*http.Transport); ok && oldTransport != nil {
			oldTransport.CloseIdleConnections()
		}
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment, // Respect standard proxy environment variables.
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAliveTimeout,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	sharedClient = &http.Client{
		Transport: transport,
		Timeout:   config.RequestTimeout,
	}

	clientInitialized = true
}

// GetHTTPClient returns the shared global HTTP client instance.
// If the client has not been initialized, it is initialized with default settings.
// This function is thread-safe.
func GetHTTPClient() *http.Client {
	sharedClientLock.RLock()
	if !clientInitialized {
		sharedClientLock.RUnlock()
		InitHTTPClient(nil)
		sharedClientLock.RLock()
	}
	client := sharedClient
	sharedClientLock.RUnlock()
	return client
}

// ConfigureHTTPClient updates the shared HTTP client's configuration.
// It is equivalent to calling InitHTTPClient. This function is thread-safe.
func ConfigureHTTPClient(config *Config) {
	InitHTTPClient(config)
}
