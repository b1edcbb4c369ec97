package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/docattest/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. os.Args is
// filtered with flagx.FilterArgs so unrelated flags do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-http", "-t", "-policy"})

	fs := flag.NewFlagSet("signer", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port of the attestation server")
	fs.StringVar(&cfg.ServerHTTPAddr, "http", cfg.ServerHTTPAddr, "base URL of the attestation HTTP API")
	fs.StringVar(&cfg.IdentityPolicy, "policy", cfg.IdentityPolicy, "default identity policy for publish")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
