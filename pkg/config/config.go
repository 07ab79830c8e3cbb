// Package config loads and validates the server configuration.
//
// Configuration is read from a YAML file, then overridden by environment
// variables, then validated. Every field has a usable default so a server can
// start with no file at all in local deployment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Deployment selects how execution state is kept between tool calls.
type Deployment string

const (
	// DeploymentLocal keeps one execution context for the life of the process.
	DeploymentLocal Deployment = "local"
	// DeploymentRemote rebuilds the execution context from the shared cache
	// on every tool call.
	DeploymentRemote Deployment = "remote"
)

// Transport selects how the MCP server is exposed.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// Config represents the full server configuration.
type Config struct {
	// ProjectID is the tenant key under which the continuity projection is cached.
	ProjectID string `yaml:"project_id" json:"project_id"`

	// APIKey is passed to the browser grid when attaching over CDP.
	APIKey string `yaml:"api_key" json:"api_key"`

	Deployment Deployment `yaml:"deployment" json:"deployment"`

	Browser   BrowserConfig   `yaml:"browser" json:"browser"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Execution ExecutionConfig `yaml:"execution" json:"execution"`
	LLM       LLMConfig       `yaml:"llm" json:"llm"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// BrowserConfig controls browser session creation.
type BrowserConfig struct {
	Headless bool     `yaml:"headless" json:"headless"`
	Viewport Viewport `yaml:"viewport" json:"viewport"`

	// CDPEndpoint, when set, attaches to a remote browser grid instead of
	// launching a local browser. The literal "{session_id}" is replaced by the
	// session id, so any process can reattach to a session by id.
	CDPEndpoint string `yaml:"cdp_endpoint" json:"cdp_endpoint"`

	Proxies     bool          `yaml:"proxies" json:"proxies"`
	MaxSessions int           `yaml:"max_sessions" json:"max_sessions"`
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// AllowedURLs and DeniedURLs are glob patterns applied to navigation targets.
	AllowedURLs []string `yaml:"allowed_urls" json:"allowed_urls"`
	DeniedURLs  []string `yaml:"denied_urls" json:"denied_urls"`
}

// Viewport represents browser viewport dimensions in pixels.
type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// CacheConfig controls the shared continuity cache.
type CacheConfig struct {
	RedisURL     string        `yaml:"redis_url" json:"redis_url"`
	KeyPrefix    string        `yaml:"key_prefix" json:"key_prefix"`
	TTL          time.Duration `yaml:"ttl" json:"ttl"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
}

// ExecutionConfig controls the tool-run state machine.
type ExecutionConfig struct {
	// SettleDelay is how long to wait after a successful action before
	// capturing a snapshot.
	SettleDelay      time.Duration `yaml:"settle_delay" json:"settle_delay"`
	DefaultSessionID string        `yaml:"default_session_id" json:"default_session_id"`

	// MaxSnapshotChars caps snapshot text included in tool results. Zero
	// disables the cap.
	MaxSnapshotChars int `yaml:"max_snapshot_chars" json:"max_snapshot_chars"`
}

// LLMConfig configures the optional model used by extract and observe.
type LLMConfig struct {
	APIKey  string `yaml:"api_key" json:"api_key"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	Model   string `yaml:"model" json:"model"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Dir string `yaml:"dir" json:"dir"`
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// ServerConfig controls the MCP transport.
type ServerConfig struct {
	Transport Transport `yaml:"transport" json:"transport"`
	Addr      string    `yaml:"addr" json:"addr"`
}

// Default values
const (
	DefaultSessionID        = "browserbase_session_main"
	DefaultViewportWidth    = 1280
	DefaultViewportHeight   = 720
	DefaultMaxSessions      = 5
	DefaultIdleTimeout      = 5 * time.Minute
	DefaultCacheTTL         = 10 * time.Minute
	DefaultCacheMaxRetries  = 5
	DefaultCacheBackoff     = 50 * time.Millisecond
	DefaultKeyPrefix        = "browserbase:context:"
	DefaultSettleDelay      = 500 * time.Millisecond
	DefaultMaxSnapshotChars = 40000
	DefaultLLMModel         = "gpt-4o"
	DefaultHTTPAddr         = ":8931"
)

// DefaultConfig returns a configuration suitable for a local, single-user server.
func DefaultConfig() *Config {
	logDir := ".browserbase-mcp/logs"
	if home, err := os.UserHomeDir(); err == nil {
		logDir = home + "/.browserbase-mcp/logs"
	}

	return &Config{
		Deployment: DeploymentLocal,
		Browser: BrowserConfig{
			Headless: true,
			Viewport: Viewport{
				Width:  DefaultViewportWidth,
				Height: DefaultViewportHeight,
			},
			MaxSessions: DefaultMaxSessions,
			IdleTimeout: DefaultIdleTimeout,
		},
		Cache: CacheConfig{
			KeyPrefix:    DefaultKeyPrefix,
			TTL:          DefaultCacheTTL,
			MaxRetries:   DefaultCacheMaxRetries,
			RetryBackoff: DefaultCacheBackoff,
		},
		Execution: ExecutionConfig{
			SettleDelay:      DefaultSettleDelay,
			DefaultSessionID: DefaultSessionID,
			MaxSnapshotChars: DefaultMaxSnapshotChars,
		},
		LLM: LLMConfig{
			Model: DefaultLLMModel,
		},
		Logging: LoggingConfig{
			Dir:       logDir,
			Verbosity: "normal",
		},
		Server: ServerConfig{
			Transport: TransportStdio,
			Addr:      DefaultHTTPAddr,
		},
	}
}

// Load reads the YAML file at path on top of DefaultConfig. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv; tests pass a map-backed function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set("BROWSERBASE_PROJECT_ID", &c.ProjectID)
	set("BROWSERBASE_API_KEY", &c.APIKey)
	set("BROWSERBASE_CDP_ENDPOINT", &c.Browser.CDPEndpoint)
	set("REDIS_URL", &c.Cache.RedisURL)
	set("OPENAI_API_KEY", &c.LLM.APIKey)
	set("OPENAI_BASE_URL", &c.LLM.BaseURL)
	set("BROWSERBASE_MCP_LOG_DIR", &c.Logging.Dir)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Deployment {
	case DeploymentLocal:
	case DeploymentRemote:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("remote deployment requires cache.redis_url")
		}
		if c.ProjectID == "" {
			return fmt.Errorf("remote deployment requires project_id")
		}
	default:
		return fmt.Errorf("invalid deployment: %s (must be 'local' or 'remote')", c.Deployment)
	}

	if c.Browser.Viewport.Width < 100 || c.Browser.Viewport.Width > 5000 {
		return fmt.Errorf("viewport width must be between 100 and 5000 pixels")
	}
	if c.Browser.Viewport.Height < 100 || c.Browser.Viewport.Height > 5000 {
		return fmt.Errorf("viewport height must be between 100 and 5000 pixels")
	}
	if c.Browser.MaxSessions < 1 {
		return fmt.Errorf("browser.max_sessions must be at least 1")
	}
	if c.Browser.IdleTimeout < 0 {
		return fmt.Errorf("browser.idle_timeout cannot be negative")
	}
	if c.Browser.CDPEndpoint != "" && !strings.Contains(c.Browser.CDPEndpoint, "{session_id}") {
		return fmt.Errorf("browser.cdp_endpoint must contain the {session_id} placeholder")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Cache.MaxRetries < 1 {
		return fmt.Errorf("cache.max_retries must be at least 1")
	}
	if c.Cache.RetryBackoff < 0 {
		return fmt.Errorf("cache.retry_backoff cannot be negative")
	}

	if c.Execution.SettleDelay < 0 {
		return fmt.Errorf("execution.settle_delay cannot be negative")
	}
	if c.Execution.DefaultSessionID == "" {
		return fmt.Errorf("execution.default_session_id is required")
	}
	if c.Execution.MaxSnapshotChars < 0 {
		return fmt.Errorf("execution.max_snapshot_chars cannot be negative")
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	switch c.Server.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.Server.Addr == "" {
			return fmt.Errorf("http transport requires server.addr")
		}
	default:
		return fmt.Errorf("invalid server transport: %s (must be 'stdio' or 'http')", c.Server.Transport)
	}

	return nil
}

// LLMEnabled reports whether extract and observe may call a model.
func (c *Config) LLMEnabled() bool {
	return c.LLM.APIKey != ""
}
