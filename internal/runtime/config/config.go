// Package config holds the process-wide settings every strategy reads at
// dispatch time, plus a loader for file and environment based settings.
package config

import (
	"net/http"
	"slices"
	"strings"
	"sync"

	loggingpkg "github.com/drblury/hookflow/internal/runtime/logging"
)

// DefaultPathPrefix is the URL prefix strategies listen under unless configured otherwise.
const DefaultPathPrefix = "/hooks"

// DefaultAllowedRequestMethods returns the methods a strategy accepts by default.
func DefaultAllowedRequestMethods() []string {
	return []string{http.MethodPost}
}

// Config is the live configuration. Writes are rare and take effect on the
// next dispatch.
type Config struct {
	mu             sync.RWMutex
	logger         loggingpkg.ServiceLogger
	pathPrefix     string
	allowedMethods []string
}

var (
	global     *Config
	globalOnce sync.Once
)

// New returns a configuration holding the defaults.
func New() *Config {
	c := &Config{}
	c.Reset()
	return c
}

// Global returns the process-wide configuration, creating it on first use.
func Global() *Config {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// Configure passes the global configuration to fn for in-place changes.
func Configure(fn func(*Config)) {
	if fn != nil {
		fn(Global())
	}
}

// Reset restores the defaults.
func (c *Config) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = loggingpkg.Default()
	c.pathPrefix = DefaultPathPrefix
	c.allowedMethods = DefaultAllowedRequestMethods()
}

func (c *Config) Logger() loggingpkg.ServiceLogger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// SetLogger replaces the logger. A nil logger discards output.
func (c *Config) SetLogger(logger loggingpkg.ServiceLogger) {
	if logger == nil {
		logger = loggingpkg.Discard()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

func (c *Config) PathPrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pathPrefix
}

func (c *Config) SetPathPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pathPrefix = prefix
}

// AllowedRequestMethods returns a copy of the accepted methods, upper-cased.
func (c *Config) AllowedRequestMethods() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.allowedMethods)
}

// SetAllowedRequestMethods replaces the accepted methods. Names are
// case-insensitive.
func (c *Config) SetAllowedRequestMethods(methods ...string) {
	normalized := make([]string, 0, len(methods))
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m != "" && !slices.Contains(normalized, m) {
			normalized = append(normalized, m)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowedMethods = normalized
}

// MethodAllowed reports whether method is one of the accepted methods.
func (c *Config) MethodAllowed(method string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.allowedMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}
