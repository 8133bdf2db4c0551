// Package config resolves the process configuration from environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ggoodman/context7-mcp-go/internal/context7"
	"github.com/ggoodman/context7-mcp-go/internal/policy"
	"github.com/joeshaw/envdecode"
)

// ErrInvalidTransport is returned for transport names other than stdio,
// http and sse.
var ErrInvalidTransport = errors.New("invalid transport")

// Transport selects how the server talks to its client.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
)

// ParseTransport validates a transport name.
func ParseTransport(s string) (Transport, error) {
	switch t := Transport(strings.ToLower(strings.TrimSpace(s))); t {
	case TransportStdio, TransportHTTP, TransportSSE:
		return t, nil
	}
	return "", fmt.Errorf("%w %q: must be one of stdio, http, sse", ErrInvalidTransport, s)
}

// Serves reports whether the transport runs the HTTP listener. http and sse
// are the same listener; both expose /mcp and /sse.
func (t Transport) Serves() bool {
	return t == TransportHTTP || t == TransportSSE
}

const (
	DefaultPort          = 3000
	DefaultMinimumTokens = 10000
)

// Env mirrors the environment variables the server reads.
type Env struct {
	Port            string        `env:"PORT"`
	Transport       string        `env:"MCP_TRANSPORT"`
	APIKey          string        `env:"CONTEXT7_API_KEY"`
	APIURL          string        `env:"CONTEXT7_API_URL,default=https://context7.com/api"`
	MinimumTokens   string        `env:"DEFAULT_MINIMUM_TOKENS"`
	AcceptLibraries string        `env:"CONTEXT7_ACCEPT_LIBRARIES"`
	RejectLibraries string        `env:"CONTEXT7_REJECT_LIBRARIES"`
	FetchTimeout    time.Duration `env:"CONTEXT7_FETCH_TIMEOUT,default=30s"`
	LogLevel        string        `env:"LOG_LEVEL"`

	HTTPSProxy      string `env:"HTTPS_PROXY"`
	HTTPSProxyLower string `env:"https_proxy"`
	HTTPProxy       string `env:"HTTP_PROXY"`
	HTTPProxyLower  string `env:"http_proxy"`
}

// LoadEnv decodes the process environment.
func LoadEnv() (Env, error) {
	var env Env
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Env{}, fmt.Errorf("decode environment: %w", err)
	}
	return env, nil
}

// Flags are the command-line values. TransportSet distinguishes an explicit
// --transport from its default.
type Flags struct {
	Transport    string
	TransportSet bool
	Port         string
	APIKey       string
	Accept       string
	Reject       string
	LogLevel     string
}

// Config is the resolved configuration.
type Config struct {
	Transport     Transport
	Port          int
	Upstream      context7.Config
	MinimumTokens int
	Accept        []string
	Reject        []string
	LogLevel      slog.Level

	// Warnings holds messages about ignored values, to be logged once a
	// logger exists.
	Warnings []string
}

// Resolve merges env and flags.
func Resolve(env Env, flags Flags) (*Config, error) {
	cfg := &Config{}

	rawTransport := string(TransportStdio)
	switch {
	case flags.TransportSet:
		rawTransport = flags.Transport
	case env.Transport != "":
		rawTransport = env.Transport
	}
	t, err := ParseTransport(rawTransport)
	if err != nil {
		return nil, err
	}
	cfg.Transport = t

	cfg.Port = ResolvePort(env.Port, flags.Port)

	cfg.MinimumTokens = DefaultMinimumTokens
	if raw := strings.TrimSpace(env.MinimumTokens); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("Invalid DEFAULT_MINIMUM_TOKENS value provided in environment variable. Using default value of %d", DefaultMinimumTokens))
		} else {
			cfg.MinimumTokens = n
		}
	}

	cfg.Accept = policy.ParseList(env.AcceptLibraries)
	if l := policy.ParseList(flags.Accept); len(l) > 0 {
		cfg.Accept = l
	}
	cfg.Reject = policy.ParseList(env.RejectLibraries)
	if l := policy.ParseList(flags.Reject); len(l) > 0 {
		cfg.Reject = l
	}

	cfg.Upstream = context7.Config{
		BaseURL: env.APIURL,
		Timeout: env.FetchTimeout,
		APIKey:  firstNonEmpty(flags.APIKey, env.APIKey),
	}
	if raw := firstNonEmpty(env.HTTPSProxy, env.HTTPSProxyLower, env.HTTPProxy, env.HTTPProxyLower); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("Ignoring invalid proxy URL %q", raw))
		} else {
			cfg.Upstream.ProxyURL = u
		}
	}

	level := firstNonEmpty(flags.LogLevel, env.LogLevel, "info")
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("Ignoring invalid log level %q", level))
		cfg.LogLevel = slog.LevelInfo
	}

	return cfg, nil
}

// ResolvePort applies the port precedence: a valid environment value, then a
// valid flag value, then DefaultPort. A value is valid when it is an integer
// in [0, 65535]; anything else falls through to the next source.
func ResolvePort(envPort, flagPort string) int {
	for _, raw := range []string{envPort, flagPort} {
		if p, ok := parsePort(raw); ok {
			return p
		}
	}
	return DefaultPort
}

func parsePort(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 65535 {
		return 0, false
	}
	return n, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
