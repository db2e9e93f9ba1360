// ABOUTME: Configuration loading for the toolbench CLI
// ABOUTME: Loads TOML config from the XDG path with environment variable overrides

package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Built-in defaults. A missing config file is not an error; the CLI runs
// against a local mock backend out of the box.
const (
	defaultServerURL = "http://localhost:8080"
	defaultMockURL   = "http://localhost:8080"
)

type cliConfig struct {
	Server serverConfig `toml:"server"`
	Tokens tokensConfig `toml:"tokens"`
}

type serverConfig struct {
	// URL is the backend base address.
	URL string `toml:"url"`
	// UseMock switches to the local mock backend address.
	UseMock bool `toml:"use_mock"`
	// MockURL is the mock backend address used when UseMock is set.
	MockURL string `toml:"mock_url"`
	// Timeout bounds each request, e.g. "30s".
	Timeout string `toml:"timeout"`
}

type tokensConfig struct {
	// Path overrides the token file location.
	Path string `toml:"path"`
}

// configPath returns the CLI config file location.
// Priority: TOOLBENCH_CONFIG > $XDG_CONFIG_HOME/toolbench/config.toml
// > ~/.config/toolbench/config.toml.
func configPath() string {
	if p := os.Getenv("TOOLBENCH_CONFIG"); p != "" {
		return p
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "toolbench", "config.toml")
}

// loadConfig reads the CLI config, expanding ${VAR} environment references.
// A missing file yields the defaults.
func loadConfig() (*cliConfig, error) {
	cfg := &cliConfig{}

	data, err := os.ReadFile(configPath())
	if err == nil {
		expanded := expandEnvVars(string(data))
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Environment overrides beat the file.
	if v := os.Getenv("TOOLBENCH_SERVER"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("TOOLBENCH_USE_MOCK"); v != "" {
		cfg.Server.UseMock = v == "true" || v == "1"
	}

	if cfg.Server.URL == "" {
		cfg.Server.URL = defaultServerURL
	}
	if cfg.Server.MockURL == "" {
		cfg.Server.MockURL = defaultMockURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that the configured addresses and timeout parse.
func (c *cliConfig) Validate() error {
	if _, err := url.Parse(c.Server.URL); err != nil {
		return fmt.Errorf("server.url is not a valid URL: %w", err)
	}
	if c.Server.Timeout != "" {
		if _, err := time.ParseDuration(c.Server.Timeout); err != nil {
			return fmt.Errorf("server.timeout is not a valid duration: %w", err)
		}
	}
	return nil
}

// baseURL returns the effective backend address.
func (c *cliConfig) baseURL() string {
	if c.Server.UseMock {
		return c.Server.MockURL
	}
	return c.Server.URL
}

// timeout returns the configured request timeout, or zero for the default.
func (c *cliConfig) timeout() time.Duration {
	if c.Server.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Server.Timeout)
	return d
}
