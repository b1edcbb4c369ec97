package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/logging"
	"golang.org/x/crypto/sha3"
)

// WorldIDOptions configures the cloud verification endpoint.
type WorldIDOptions struct {
	BaseURL  string
	AppID    string
	Action   string
	Attempts int
	Delay    time.Duration
}

// WorldIDVerifier checks proofs against the World ID developer API.
type WorldIDVerifier struct {
	opts   WorldIDOptions
	client *http.Client
	log    logging.Logger
}

func NewWorldIDVerifier(opts WorldIDOptions, client *http.Client, log logging.Logger) *WorldIDVerifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	return &WorldIDVerifier{opts: opts, client: client, log: log.With("module", "worldid")}
}

type verifyRequest struct {
	NullifierHash     string `json:"nullifier_hash"`
	MerkleRoot        string `json:"merkle_root"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
	Action            string `json:"action"`
	SignalHash        string `json:"signal_hash"`
}

type verifyError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// SignalHash maps a signal to the field element World ID binds proofs to:
// keccak256(signal) shifted right by 8 bits, as 0x-prefixed 32-byte hex.
func SignalHash(signal string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signal))
	n := new(big.Int).SetBytes(h.Sum(nil))
	n.Rsh(n, 8)
	return fmt.Sprintf("0x%064x", n)
}

// CheckPersonhood verifies p for the configured action with the content
// hash as signal, so a proof cannot be replayed against another document.
func (v *WorldIDVerifier) CheckPersonhood(ctx context.Context, p PersonhoodProof, signal string) (Verdict, error) {
	level := p.VerificationLevel
	if level == "" {
		level = "orb"
	}
	body, err := json.Marshal(verifyRequest{
		NullifierHash:     p.NullifierHash,
		MerkleRoot:        p.MerkleRoot,
		Proof:             p.Proof,
		VerificationLevel: level,
		Action:            v.opts.Action,
		SignalHash:        SignalHash(signal),
	})
	if err != nil {
		return Verdict{}, err
	}

	url := strings.TrimRight(v.opts.BaseURL, "/") + "/api/v2/verify/" + v.opts.AppID

	status, respBody, err := doWithRetry(ctx, v.opts.Attempts, v.opts.Delay, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := v.client.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return resp.StatusCode, b, err
	})
	if err != nil {
		return Verdict{}, common.ErrVerifierUnavailable.Wrap(err, "world id")
	}
	if transient(status) {
		return Verdict{}, common.ErrVerifierUnavailable.Newf("world id responded %d", status)
	}

	if status == http.StatusOK {
		return Verdict{Valid: true}, nil
	}

	var ve verifyError
	_ = json.Unmarshal(respBody, &ve)
	v.log.Warn(ctx, "world id rejected proof", "status", status, "code", ve.Code)
	if ve.Code == "" {
		return invalid("world id rejected proof with status %d", status), nil
	}
	return invalid("%s: %s", ve.Code, ve.Detail), nil
}
