package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TLSConfig holds the credential artifact paths for the push channel.
// Paths only; the files themselves are read by the mtls package.
type TLSConfig struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
	CA   string `yaml:"ca"`
}

// Config holds policydeck runtime configuration.
type Config struct {
	URL          string        `yaml:"url"`          // policy read endpoint
	PushEndpoint string        `yaml:"pushEndpoint"` // policy create endpoint
	ListenAddr   string        `yaml:"listenAddr"`   // default ":8080"
	MetricsPath  string        `yaml:"metricsPath"`  // default "/metrics"
	RefreshEvery time.Duration `yaml:"refreshEvery"` // default 30s
	HistoryDB    string        `yaml:"historyDB"`    // empty = history disabled
	SPIFFESocket string        `yaml:"spiffeSocket"` // empty = file credentials
	TLS          TLSConfig     `yaml:"tls"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		URL:          "http://localhost:8000/policies",
		ListenAddr:   ":8080",
		MetricsPath:  "/metrics",
		RefreshEvery: 30 * time.Second,
	}
}

// Load reads a YAML config file and merges with defaults.
func Load(path string) (*Config, error) {
	c := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return c, nil
}

// Validate checks that the config values are sane.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url must not be empty")
	}
	if c.RefreshEvery < 5*time.Second {
		return fmt.Errorf("refreshEvery must be at least 5s, got %s", c.RefreshEvery)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listenAddr must not be empty")
	}
	// Credential paths travel together: a partial set is a config mistake,
	// not something to quietly paper over at push time.
	set := 0
	for _, p := range []string{c.TLS.Cert, c.TLS.Key, c.TLS.CA} {
		if p != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return fmt.Errorf("tls requires all of cert, key and ca (got %d of 3)", set)
	}
	return nil
}
