package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"signaldesk/internal/util"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for signaldesk.
type Config struct {
	Backend Backend `yaml:"backend"`
	Channel Channel `yaml:"channel"`
	Feeds   Feeds   `yaml:"feeds"`
	Chat    Chat    `yaml:"chat"`
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Logging Logging `yaml:"logging"`
}

// Backend locates the signal backend.
type Backend struct {
	APIURL  string        `yaml:"api_url"`
	WSURL   string        `yaml:"ws_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Channel tunes the realtime websocket connection.
type Channel struct {
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay"`
	BackoffFactor     float64       `yaml:"backoff_factor"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
}

// Backoff returns the reconnect policy described by the channel settings.
func (c Channel) Backoff() util.Backoff {
	return util.Backoff{Base: c.ReconnectDelay, Max: c.ReconnectMaxDelay, Factor: c.BackoffFactor}
}

// Feeds sizes the in-memory feeds and the initial history fetch.
type Feeds struct {
	SignalCapacity   int           `yaml:"signal_capacity"`
	TweetCapacity    int           `yaml:"tweet_capacity"`
	BootstrapSignals int           `yaml:"bootstrap_signals"`
	BootstrapTweets  int           `yaml:"bootstrap_tweets"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"`
}

// Chat configures the assistant session.
type Chat struct {
	RotateSessionOnClear bool `yaml:"rotate_session_on_clear"`
}

// Server holds the local read-model API listener.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Storage holds paths for the history archive.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Default returns the local-development configuration.
func Default() *Config {
	return &Config{
		Backend: Backend{
			APIURL:  "http://localhost:3001/api",
			WSURL:   "ws://localhost:3001",
			Timeout: 30 * time.Second,
		},
		Channel: Channel{
			ReconnectDelay:   5 * time.Second,
			BackoffFactor:    1,
			HandshakeTimeout: 10 * time.Second,
			PingInterval:     30 * time.Second,
		},
		Feeds: Feeds{
			SignalCapacity:   100,
			TweetCapacity:    50,
			BootstrapSignals: 50,
			BootstrapTweets:  20,
			RefreshInterval:  60 * time.Second,
		},
		Server: Server{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/signaldesk.db",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path over Default(),
// then applies environment variable overrides. Keys missing from the file
// keep their default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default() (plus
// environment overrides) when path is empty or the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		cfg, err := Load(path)
		if err == nil || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}
	cfg := Default()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set. The SIGNALDESK_
// names win over the short ones.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("API_URL"); v != "" {
		cfg.Backend.APIURL = v
	}
	if v := os.Getenv("SIGNALDESK_API_URL"); v != "" {
		cfg.Backend.APIURL = v
	}

	if v := os.Getenv("WS_URL"); v != "" {
		cfg.Backend.WSURL = v
	}
	if v := os.Getenv("SIGNALDESK_WS_URL"); v != "" {
		cfg.Backend.WSURL = v
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("SIGNALDESK_ADDR"); v != "" {
		if host, port, err := net.SplitHostPort(v); err == nil {
			if p, err := strconv.Atoi(port); err == nil {
				cfg.Server.Host = host
				cfg.Server.Port = p
			}
		}
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Backend.APIURL == "":
		return errors.New("backend.api_url is empty")
	case c.Backend.WSURL == "":
		return errors.New("backend.ws_url is empty")
	case c.Backend.Timeout <= 0:
		return errors.New("backend.timeout must be positive")
	case c.Channel.ReconnectDelay <= 0:
		return errors.New("channel.reconnect_delay must be positive")
	case c.Channel.ReconnectMaxDelay < 0:
		return errors.New("channel.reconnect_max_delay must not be negative")
	case c.Feeds.SignalCapacity <= 0:
		return errors.New("feeds.signal_capacity must be positive")
	case c.Feeds.TweetCapacity <= 0:
		return errors.New("feeds.tweet_capacity must be positive")
	case c.Feeds.BootstrapSignals <= 0:
		return errors.New("feeds.bootstrap_signals must be positive")
	case c.Feeds.BootstrapTweets <= 0:
		return errors.New("feeds.bootstrap_tweets must be positive")
	case c.Feeds.RefreshInterval <= 0:
		return errors.New("feeds.refresh_interval must be positive")
	case c.Server.Port < 1 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
