package grpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/docattest/internal/api"
	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/server/identity"
	"github.com/dmitrijs2005/docattest/internal/server/models"
	"github.com/dmitrijs2005/docattest/internal/server/services"
)

var signerAddr = "0x" + strings.Repeat("ab", 20)

// ---- fakes ----

type fakeLifecycle struct {
	publishReq services.PublishRequest
	doc        *models.Document
	err        error
	check      services.CheckResult
}

func (f *fakeLifecycle) Publish(ctx context.Context, req services.PublishRequest) (*models.Document, error) {
	f.publishReq = req
	return f.doc, f.err
}
func (f *fakeLifecycle) Get(ctx context.Context, id string) (*models.Document, error) {
	return f.doc, f.err
}
func (f *fakeLifecycle) Check(ctx context.Context, h string) (services.CheckResult, error) {
	return f.check, f.err
}

type fakeCollector struct {
	req services.SubmitRequest
	res *services.SignatureResult
	err error
}

func (f *fakeCollector) Submit(ctx context.Context, req services.SubmitRequest) (*services.SignatureResult, error) {
	f.req = req
	return f.res, f.err
}

type fakeFinalizer struct {
	res *services.FinalAttestationResult
	err error
}

func (f *fakeFinalizer) Finalize(ctx context.Context, id string) (*services.FinalAttestationResult, error) {
	return f.res, f.err
}

type fakeVerifier struct {
	verdict identity.Verdict
	err     error
}

func (f *fakeVerifier) Verify(ctx context.Context, c identity.Claim) (identity.Verdict, error) {
	return f.verdict, f.err
}

type testEnv struct {
	lifecycle *fakeLifecycle
	collector *fakeCollector
	finalizer *fakeFinalizer
	verifier  *fakeVerifier
	conn      *grpc.ClientConn
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		lifecycle: &fakeLifecycle{},
		collector: &fakeCollector{},
		finalizer: &fakeFinalizer{},
		verifier:  &fakeVerifier{},
	}
	s := NewGRPCServer("bufnet", nopLogger{}, env.lifecycle, env.collector, env.finalizer, env.verifier)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.requestIDInterceptor, s.loggingInterceptor))
	RegisterAttestationServer(srv, s)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	env.conn = conn
	return env
}

func (e *testEnv) call(t *testing.T, method string, in any, out any, opts ...grpc.CallOption) error {
	t.Helper()
	req, err := api.ToStruct(in)
	require.NoError(t, err)
	resp := &structpb.Struct{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.conn.Invoke(ctx, api.FullMethod(method), req, resp, opts...); err != nil {
		return err
	}
	if out != nil {
		require.NoError(t, api.FromStruct(resp, out))
	}
	return nil
}

// ---- tests ----

func TestPublish(t *testing.T) {
	env := newTestEnv(t)
	env.lifecycle.doc = &models.Document{ID: "d1", ContentHash: "abc123", RequiredSignatures: 2, RemainingSignatures: 2, IdentityPolicy: models.PolicyWalletSignature}

	var out api.Document
	err := env.call(t, api.MethodPublish, api.PublishRequest{
		ContentHash: "abc123", RequiredSignatures: 2, IdentityPolicy: "wallet_signature",
		Creator: api.Identity{Kind: "wallet", Value: signerAddr},
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, "d1", out.ID)
	assert.Equal(t, "published", out.State)
	assert.Equal(t, 2, out.RemainingSignatures)
	assert.Equal(t, 2, env.lifecycle.publishReq.RequiredSignatures)
	assert.Equal(t, signerAddr, env.lifecycle.publishReq.Creator.Value())
}

func TestPublish_BadCreator(t *testing.T) {
	env := newTestEnv(t)
	var trailer metadata.MD
	err := env.call(t, api.MethodPublish, api.PublishRequest{
		ContentHash: "abc123", RequiredSignatures: 1, IdentityPolicy: "wallet_signature",
		Creator: api.Identity{Kind: "wallet", Value: "alice"},
	}, nil, grpc.Trailer(&trailer))

	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, []string{"2"}, trailer.Get(api.ErrorCodeTrailer))
}

func TestSubmit(t *testing.T) {
	env := newTestEnv(t)
	env.collector.res = &services.SignatureResult{
		Outcome: services.OutcomeAccepted, DocumentID: "d1", AttestationRecordID: "0xrec",
		RemainingSignatures: 1,
	}

	var out api.SignatureResult
	var header metadata.MD
	err := env.call(t, api.MethodSubmit, api.SubmitRequest{
		DocumentID: "d1",
		Identity:   api.Identity{Kind: "wallet", Value: signerAddr},
		Proof:      api.Proof{Signature: "0x01"},
	}, &out, grpc.Header(&header))
	require.NoError(t, err)

	assert.Equal(t, "accepted", out.Outcome)
	assert.Equal(t, 1, out.RemainingSignatures)
	assert.False(t, out.IsComplete)
	assert.Equal(t, identity.WalletSignature{Signature: "0x01"}, env.collector.req.Proof)
	assert.NotEmpty(t, header.Get(api.RequestIDHeader))
}

func TestSubmit_TerminalOutcomesAreSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.collector.res = &services.SignatureResult{Outcome: services.OutcomeThresholdMet, DocumentID: "d1", IsComplete: true}

	var out api.SignatureResult
	err := env.call(t, api.MethodSubmit, api.SubmitRequest{
		DocumentID: "d1",
		Identity:   api.Identity{Kind: "wallet", Value: signerAddr},
		Proof:      api.Proof{Signature: "0x01"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "threshold_met", out.Outcome)
}

func TestSubmit_ProofInvalid(t *testing.T) {
	env := newTestEnv(t)
	env.collector.err = common.ErrProofInvalid.New("signature mismatch")

	err := env.call(t, api.MethodSubmit, api.SubmitRequest{
		DocumentID: "d1",
		Identity:   api.Identity{Kind: "wallet", Value: signerAddr},
		Proof:      api.Proof{Signature: "0x01"},
	}, nil)
	st, _ := status.FromError(err)
	assert.Equal(t, codes.PermissionDenied, st.Code())
	assert.Contains(t, st.Message(), "signature mismatch")
}

func TestFinalize(t *testing.T) {
	env := newTestEnv(t)
	env.finalizer.res = &services.FinalAttestationResult{DocumentID: "d1", FinalAttestationID: "0xtx", SignatureRecordIDs: []string{"a", "b"}}

	var out api.FinalAttestation
	require.NoError(t, env.call(t, api.MethodFinalize, api.DocumentIDRequest{DocumentID: "d1"}, &out))
	assert.Equal(t, "0xtx", out.FinalAttestationID)
	assert.Equal(t, []string{"a", "b"}, out.SignatureRecordIDs)

	env.finalizer.err = common.ErrNotReady.New("1 remaining")
	err := env.call(t, api.MethodFinalize, api.DocumentIDRequest{DocumentID: "d1"}, nil)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGetAndCheck(t *testing.T) {
	env := newTestEnv(t)
	env.lifecycle.err = common.ErrNotFound.New("document")
	err := env.call(t, api.MethodGetDocument, api.DocumentIDRequest{DocumentID: "x"}, nil)
	assert.Equal(t, codes.NotFound, status.Code(err))

	env.lifecycle.err = nil
	env.lifecycle.check = services.CheckResult{Exists: true, DocumentID: "d1"}
	var out api.CheckResult
	require.NoError(t, env.call(t, api.MethodCheckDocument, api.CheckRequest{ContentHash: "abc123"}, &out))
	assert.Equal(t, api.CheckResult{Exists: true, DocumentID: "d1"}, out)
}

func TestVerifyProof(t *testing.T) {
	env := newTestEnv(t)
	env.verifier.verdict = identity.Verdict{Valid: false, Reason: "invalid_proof: bad"}

	var out api.Verdict
	require.NoError(t, env.call(t, api.MethodVerifyProof, api.VerifyRequest{
		ContentHash: "abc123", IdentityPolicy: "proof_of_personhood",
		Identity: api.Identity{Kind: "personhood", Value: "0x01"},
		Proof:    api.Proof{MerkleRoot: "0x2", NullifierHash: "0x01", Proof: "0x3"},
	}, &out))
	assert.False(t, out.Valid)
	assert.Equal(t, "invalid_proof: bad", out.Reason)

	env.verifier.err = common.ErrVerifierUnavailable.New("503")
	err := env.call(t, api.MethodVerifyProof, api.VerifyRequest{
		Identity: api.Identity{Kind: "personhood", Value: "0x01"},
		Proof:    api.Proof{MerkleRoot: "0x2", NullifierHash: "0x01", Proof: "0x3"},
	}, nil)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	var out map[string]string
	require.NoError(t, env.call(t, api.MethodPing, struct{}{}, &out))
	assert.Equal(t, "OK", out["status"])
}

func TestRequestIDIsPropagated(t *testing.T) {
	env := newTestEnv(t)
	var header metadata.MD
	ctx := metadata.AppendToOutgoingContext(context.Background(), api.RequestIDHeader, "req-42")
	err := env.conn.Invoke(ctx, api.FullMethod(api.MethodPing), &structpb.Struct{}, &structpb.Struct{}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"req-42"}, header.Get(api.RequestIDHeader))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{common.ErrInvalidInput, codes.InvalidArgument},
		{common.ErrPolicyMismatch.New("x"), codes.InvalidArgument},
		{common.ErrNotFound, codes.NotFound},
		{common.ErrProofInvalid, codes.PermissionDenied},
		{common.ErrNotRecipient, codes.PermissionDenied},
		{common.ErrAlreadySigned, codes.AlreadyExists},
		{common.ErrThresholdAlreadyMet, codes.AlreadyExists},
		{common.ErrNotReady, codes.FailedPrecondition},
		{common.ErrFinalizationBusy, codes.Aborted},
		{common.ErrLedgerUnavailable.Wrap(errors.New("eof"), "commit"), codes.Unavailable},
		{common.ErrStorageFailure, codes.Unavailable},
		{common.ErrVerifierUnavailable, codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(tt.err), "%v", tt.err)
	}
}
