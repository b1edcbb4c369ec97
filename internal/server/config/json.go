package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/docattest/internal/flagx"
	"github.com/dmitrijs2005/docattest/internal/timex"
)

// JsonConfig is the DTO read from the JSON config file. Durations accept
// "1s"-style strings or integer nanoseconds. Absent fields keep the values
// already present in Config, so a file may override a single setting.
type JsonConfig struct {
	EndpointAddrGRPC  string          `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP  string          `json:"endpoint_addr_http"`
	CORSOrigins       string          `json:"cors_origins"`
	DatabaseDSN       string          `json:"database_dsn"`
	S3RootUser        string          `json:"s3_root_user"`
	S3RootPassword    string          `json:"s3_root_password"`
	S3Bucket          string          `json:"s3_bucket"`
	S3Region          string          `json:"s3_region"`
	S3BaseEndpoint    string          `json:"s3_base_endpoint"`
	RedisURL          string          `json:"redis_url"`
	LogFormat         string          `json:"log_format"`
	AttestorKey       string          `json:"attestor_key"`
	LedgerRPCURL      string          `json:"ledger_rpc_url"`
	LedgerPrivateKey  string          `json:"ledger_private_key"`
	LedgerChainID     *int64          `json:"ledger_chain_id"`
	WorldIDAppID      string          `json:"worldid_app_id"`
	WorldIDAction     string          `json:"worldid_action"`
	WorldIDBaseURL    string          `json:"worldid_base_url"`
	ReferenceMode     string          `json:"reference_mode"`
	ReferenceSecret   string          `json:"reference_secret"`
	EnforceRecipients *bool           `json:"enforce_recipients"`
	AutoFinalize      *bool           `json:"auto_finalize"`
	VerifyTimeout     *timex.Duration `json:"verify_timeout"`
	LedgerTimeout     *timex.Duration `json:"ledger_timeout"`
	FinalizeLockTTL   *timex.Duration `json:"finalize_lock_ttl"`
}

// parseJson overlays values from the JSON file named by -c/-config (or the
// DOCATTEST_CONFIG variable) onto config. It panics on unreadable or invalid
// files; a missing path means there is nothing to load.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.CORSOrigins, c.CORSOrigins)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.AttestorKey, c.AttestorKey)
	setString(&config.LedgerRPCURL, c.LedgerRPCURL)
	setString(&config.LedgerPrivateKey, c.LedgerPrivateKey)
	setString(&config.WorldIDAppID, c.WorldIDAppID)
	setString(&config.WorldIDAction, c.WorldIDAction)
	setString(&config.WorldIDBaseURL, c.WorldIDBaseURL)
	setString(&config.ReferenceMode, c.ReferenceMode)
	setString(&config.ReferenceSecret, c.ReferenceSecret)

	if c.LedgerChainID != nil {
		config.LedgerChainID = *c.LedgerChainID
	}
	if c.EnforceRecipients != nil {
		config.EnforceRecipients = *c.EnforceRecipients
	}
	if c.AutoFinalize != nil {
		config.AutoFinalize = *c.AutoFinalize
	}
	if c.VerifyTimeout != nil {
		config.VerifyTimeout = c.VerifyTimeout.Duration
	}
	if c.LedgerTimeout != nil {
		config.LedgerTimeout = c.LedgerTimeout.Duration
	}
	if c.FinalizeLockTTL != nil {
		config.FinalizeLockTTL = c.FinalizeLockTTL.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
