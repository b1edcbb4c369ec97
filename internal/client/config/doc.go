// Package config loads runtime configuration for the docattest signer CLI.
//
// Sources, in increasing precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c/-config or DOCATTEST_CONFIG.
//  3. Command-line flags.
//
// Supported flags
//
//	-a string   address:port of the attestation gRPC endpoint
//	-http       base URL of the attestation HTTP API (uploads)
//	-t int      per-request timeout (seconds)
//	-policy     default identity policy for publish (wallet_signature or proof_of_personhood)
//
// JSON example:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "server_http_addr": "http://127.0.0.1:8080",
//	  "request_timeout": "30s",
//	  "identity_policy": "wallet_signature"
//	}
package config
