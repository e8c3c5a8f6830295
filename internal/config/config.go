package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"gomcp-clock/internal/clock"
)

var (
	ErrInvalidPort     = errors.New("port must be between 1 and 65535")
	ErrEmptyHost       = errors.New("host must not be empty")
	ErrInvalidEndpoint = errors.New("endpoint must start with /")
	// The streamable HTTP transport answers plain JSON unless a handler streams
	// notifications, which no clock tool does. SSE-only responses are not offered.
	ErrSSEResponse = errors.New("json_response=false is not supported")
)

// Config mirrors config.yaml. Every key can be overridden with a CLOCK_ env var.
type Config struct {
	Name         string `mapstructure:"name" yaml:"name"`
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	Stateless    bool   `mapstructure:"stateless" yaml:"stateless"`
	JSONResponse bool   `mapstructure:"json_response" yaml:"json_response"`
	AuthToken    string `mapstructure:"auth_token" yaml:"auth_token,omitempty"`
	Location     string `mapstructure:"location" yaml:"location,omitempty"`
	AuditPath    string `mapstructure:"audit_path" yaml:"audit_path"`
	LogPath      string `mapstructure:"log_path" yaml:"log_path"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	Metrics      bool   `mapstructure:"metrics" yaml:"metrics"`
}

func DefaultPath() string {
	return filepath.Join(baseDir(), "config.yaml")
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clock"
	}
	return filepath.Join(home, ".clock")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "clock")
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 7777)
	v.SetDefault("endpoint", "/mcp")
	v.SetDefault("stateless", true)
	v.SetDefault("json_response", true)
	v.SetDefault("auth_token", "")
	v.SetDefault("location", "")
	v.SetDefault("audit_path", filepath.Join(baseDir(), "calls.db"))
	v.SetDefault("log_path", filepath.Join(baseDir(), "clock.log"))
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics", true)
}

// Default returns the built-in defaults with CLOCK_ env overrides applied.
// Overrides that do not decode are ignored.
func Default() *Config {
	cfg, err := decode(newViper())
	if err == nil {
		return cfg
	}
	v := viper.New()
	setDefaults(v)
	cfg, err = decode(v)
	if err != nil {
		return &Config{}
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.AuditPath = expandPath(cfg.AuditPath)
	cfg.LogPath = expandPath(cfg.LogPath)
	return cfg, nil
}

// Load reads the config file at path, which may be relative or absolute.
// A missing file at DefaultPath is fine; a missing file elsewhere is an error.
func Load(path string) (*Config, error) {
	v := newViper()

	path = expandPath(path)
	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		case errors.Is(statErr, os.ErrNotExist) && path == DefaultPath():
		default:
			return nil, fmt.Errorf("read config: %w", statErr)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if strings.TrimSpace(c.Host) == "" {
		return ErrEmptyHost
	}
	if !strings.HasPrefix(c.Endpoint, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.Endpoint)
	}
	if !c.JSONResponse {
		return ErrSSEResponse
	}
	if _, err := clock.LoadLocation(c.Location); err != nil {
		return fmt.Errorf("location %q: %w", c.Location, err)
	}
	return nil
}

// Addr is the listen address, host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL is the MCP endpoint a local client should dial.
func (c *Config) URL() string {
	return "http://" + c.Addr() + c.Endpoint
}

// Dump writes the effective configuration as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
