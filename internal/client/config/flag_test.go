package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"signer"}, args...)
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name  string
		start Config
		args  []string
		want  Config
	}{
		{
			name: "every flag",
			args: []string{"-a", "127.0.0.1:9090", "-http", "https://attest.example", "-t", "10", "-policy", "proof_of_personhood"},
			want: Config{
				ServerEndpointAddr: "127.0.0.1:9090",
				ServerHTTPAddr:     "https://attest.example",
				RequestTimeout:     10 * time.Second,
				IdentityPolicy:     "proof_of_personhood",
			},
		},
		{
			name: "server flags are ignored",
			args: []string{"-redis", "x", "-a", ":1"},
			want: Config{ServerEndpointAddr: ":1"},
		},
		{
			name:  "unset flags keep earlier values",
			start: Config{ServerHTTPAddr: "http://from-json", RequestTimeout: 45 * time.Second, IdentityPolicy: "wallet_signature"},
			args:  []string{"-a", ":2"},
			want:  Config{ServerEndpointAddr: ":2", ServerHTTPAddr: "http://from-json", RequestTimeout: 45 * time.Second, IdentityPolicy: "wallet_signature"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, tt.args...)

			cfg := tt.start
			parseFlags(&cfg)

			assert.Empty(t, cmp.Diff(tt.want, cfg))
		})
	}
}

func TestParseFlags_BadTimeoutPanics(t *testing.T) {
	withArgs(t, "-t", "abc")

	assert.Panics(t, func() { parseFlags(&Config{}) })
}
