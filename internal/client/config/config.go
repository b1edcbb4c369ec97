package config

import "time"

// Config holds runtime settings for the signer CLI.
type Config struct {
	ServerEndpointAddr string
	// ServerHTTPAddr is the base URL of the HTTP API, used for uploads.
	ServerHTTPAddr     string
	RequestTimeout     time.Duration
	// IdentityPolicy is the policy proposed by publish when none is typed in.
	IdentityPolicy     string
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.ServerHTTPAddr = "http://127.0.0.1:8080"
	c.RequestTimeout = 30 * time.Second
	c.IdentityPolicy = "wallet_signature"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags. Later sources take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
