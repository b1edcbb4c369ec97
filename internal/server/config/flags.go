package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/docattest/internal/flagx"
)

var flagNames = []string{
	"-a", "-l", "-d", "-u", "-p", "-b", "-g", "-e",
	"-cors-origins", "-redis", "-log-format", "-attestor-key",
	"-ledger-rpc", "-ledger-key", "-chain-id",
	"-worldid-app", "-worldid-action", "-worldid-url",
	"-reference-mode", "-reference-secret",
	"-enforce-recipients", "-auto-finalize",
	"-verify-timeout", "-ledger-timeout", "-lock-ttl",
}

// parseFlags populates Config fields from command-line flags.
//
// Short forms kept from the storage settings:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-l string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-u/-p/-b/-g/-e  S3 user, password, bucket, region, base endpoint
//
// Everything else uses long names; boolean flags need the -name=value form
// because the arguments are pre-filtered with flagx.FilterArgs.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], flagNames)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "l", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.CORSOrigins, "cors-origins", config.CORSOrigins, "comma-separated CORS origins")
	fs.StringVar(&config.RedisURL, "redis", config.RedisURL, "redis URL")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format: json, zap, zap-dev")
	fs.StringVar(&config.AttestorKey, "attestor-key", config.AttestorKey, "hex ed25519 seed for off-chain attestations")

	fs.StringVar(&config.LedgerRPCURL, "ledger-rpc", config.LedgerRPCURL, "EVM JSON-RPC URL")
	fs.StringVar(&config.LedgerPrivateKey, "ledger-key", config.LedgerPrivateKey, "hex secp256k1 key for on-chain commits")
	fs.Int64Var(&config.LedgerChainID, "chain-id", config.LedgerChainID, "EVM chain id (0 = ask the node)")

	fs.StringVar(&config.WorldIDAppID, "worldid-app", config.WorldIDAppID, "World ID app id")
	fs.StringVar(&config.WorldIDAction, "worldid-action", config.WorldIDAction, "World ID action")
	fs.StringVar(&config.WorldIDBaseURL, "worldid-url", config.WorldIDBaseURL, "World ID API base URL")

	fs.StringVar(&config.ReferenceMode, "reference-mode", config.ReferenceMode, "document reference mode: plain, sealed")
	fs.StringVar(&config.ReferenceSecret, "reference-secret", config.ReferenceSecret, "secret for sealed references")

	fs.BoolVar(&config.EnforceRecipients, "enforce-recipients", config.EnforceRecipients, "only recipients may sign")
	fs.BoolVar(&config.AutoFinalize, "auto-finalize", config.AutoFinalize, "finalize when the threshold is reached")

	fs.DurationVar(&config.VerifyTimeout, "verify-timeout", config.VerifyTimeout, "identity verification timeout")
	fs.DurationVar(&config.LedgerTimeout, "ledger-timeout", config.LedgerTimeout, "ledger call timeout")
	fs.DurationVar(&config.FinalizeLockTTL, "lock-ttl", config.FinalizeLockTTL, "finalization lock TTL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
