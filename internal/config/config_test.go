package config

import (
	"os"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	c := Defaults()
	if c.ListenAddr != ":8080" {
		t.Errorf("expected :8080, got %s", c.ListenAddr)
	}
	if c.MetricsPath != "/metrics" {
		t.Errorf("expected /metrics, got %s", c.MetricsPath)
	}
	if c.RefreshEvery != 30*time.Second {
		t.Errorf("expected 30s, got %v", c.RefreshEvery)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	content := `
url: "https://policies.internal:8000/policies"
pushEndpoint: "https://policies.internal:8443/policies"
listenAddr: ":9090"
refreshEvery: 1m
tls:
  cert: /etc/policydeck/client.crt
  key: /etc/policydeck/client.key
  ca: /etc/policydeck/ca.pem
`
	f, err := os.CreateTemp("", "policydeck-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()

	c, err := Load(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if c.URL != "https://policies.internal:8000/policies" {
		t.Errorf("unexpected url: %s", c.URL)
	}
	if c.PushEndpoint != "https://policies.internal:8443/policies" {
		t.Errorf("unexpected pushEndpoint: %s", c.PushEndpoint)
	}
	if c.ListenAddr != ":9090" {
		t.Errorf("expected :9090, got %s", c.ListenAddr)
	}
	if c.RefreshEvery != time.Minute {
		t.Errorf("expected 1m, got %v", c.RefreshEvery)
	}
	if c.TLS.Cert != "/etc/policydeck/client.crt" {
		t.Errorf("unexpected tls cert path: %s", c.TLS.Cert)
	}
	// MetricsPath keeps its default when the file is silent
	if c.MetricsPath != "/metrics" {
		t.Errorf("expected default /metrics, got %s", c.MetricsPath)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"empty url", func(c *Config) { c.URL = "" }, true},
		{"refresh too fast", func(c *Config) { c.RefreshEvery = time.Second }, true},
		{"empty listen", func(c *Config) { c.ListenAddr = "" }, true},
		{"partial tls", func(c *Config) { c.TLS.Cert = "/tmp/c.crt" }, true},
		{"full tls", func(c *Config) {
			c.TLS = TLSConfig{Cert: "a", Key: "b", CA: "c"}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/policydeck.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
