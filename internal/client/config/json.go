package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/docattest/internal/flagx"
	"github.com/dmitrijs2005/docattest/internal/timex"
)

// JsonConfig is the DTO read from the JSON config file. Empty fields leave
// the current values untouched.
type JsonConfig struct {
	ServerEndpointAddr string          `json:"server_endpoint_addr"`
	ServerHTTPAddr     string          `json:"server_http_addr"`
	RequestTimeout     *timex.Duration `json:"request_timeout"`
	IdentityPolicy     string          `json:"identity_policy"`
}

// parseJson overlays cfg with the file named by -c/-config or
// DOCATTEST_CONFIG. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFile()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.ServerHTTPAddr != "" {
		cfg.ServerHTTPAddr = jc.ServerHTTPAddr
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.IdentityPolicy != "" {
		cfg.IdentityPolicy = jc.IdentityPolicy
	}
}
