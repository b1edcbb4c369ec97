package grpc

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/docattest/internal/api"
	"github.com/dmitrijs2005/docattest/internal/common"
	"github.com/dmitrijs2005/docattest/internal/server/identity"
	"github.com/dmitrijs2005/docattest/internal/server/models"
)

func (s *GRPCServer) Publish(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req api.PublishRequest
	if err := api.FromStruct(in, &req); err != nil {
		return nil, s.fail(ctx, err)
	}
	sreq, err := req.ToService()
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	doc, err := s.lifecycle.Publish(ctx, sreq)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return s.reply(ctx, api.NewDocument(doc))
}

func (s *GRPCServer) Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req api.SubmitRequest
	if err := api.FromStruct(in, &req); err != nil {
		return nil, s.fail(ctx, err)
	}
	sreq, err := req.ToService()
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	res, err := s.collector.Submit(ctx, sreq)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return s.reply(ctx, api.NewSignatureResult(res))
}

func (s *GRPCServer) Finalize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req api.DocumentIDRequest
	if err := api.FromStruct(in, &req); err != nil {
		return nil, s.fail(ctx, err)
	}
	res, err := s.finalizer.Finalize(ctx, req.DocumentID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return s.reply(ctx, api.NewFinalAttestation(res))
}

func (s *GRPCServer) GetDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req api.DocumentIDRequest
	if err := api.FromStruct(in, &req); err != nil {
		return nil, s.fail(ctx, err)
	}
	doc, err := s.lifecycle.Get(ctx, req.DocumentID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return s.reply(ctx, api.NewDocument(doc))
}

func (s *GRPCServer) CheckDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req api.CheckRequest
	if err := api.FromStruct(in, &req); err != nil {
		return nil, s.fail(ctx, err)
	}
	res, err := s.lifecycle.Check(ctx, req.ContentHash)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return s.reply(ctx, api.CheckResult{Exists: res.Exists, DocumentID: res.DocumentID})
}

func (s *GRPCServer) VerifyProof(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req api.VerifyRequest
	if err := api.FromStruct(in, &req); err != nil {
		return nil, s.fail(ctx, err)
	}
	id, proof, err := api.Claim(req.Identity, req.Proof)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	verdict, err := s.verifier.Verify(ctx, identity.Claim{
		Identity:    id,
		Proof:       proof,
		Policy:      models.IdentityPolicy(req.IdentityPolicy),
		ContentHash: req.ContentHash,
	})
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return s.reply(ctx, api.Verdict{Valid: verdict.Valid, Reason: verdict.Reason})
}

func (s *GRPCServer) Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(ctx, map[string]string{"status": "OK"})
}

func (s *GRPCServer) reply(ctx context.Context, v any) (*structpb.Struct, error) {
	out, err := api.ToStruct(v)
	if err != nil {
		s.logger.Error(ctx, "encode response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// fail converts err into a gRPC status and reports the taxonomy code in a trailer.
func (s *GRPCServer) fail(ctx context.Context, err error) error {
	_ = grpc.SetTrailer(ctx, metadata.Pairs(api.ErrorCodeTrailer, strconv.FormatUint(uint64(common.CodeOf(err)), 10)))

	code := StatusCode(err)
	if code == codes.Internal {
		s.logger.Error(ctx, "internal error", "error", err)
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}

// StatusCode maps an error kind to a gRPC code.
func StatusCode(err error) codes.Code {
	switch {
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrPolicyMismatch):
		return codes.InvalidArgument
	case errors.Is(err, common.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, common.ErrProofInvalid), errors.Is(err, common.ErrNotRecipient):
		return codes.PermissionDenied
	case errors.Is(err, common.ErrAlreadySigned), errors.Is(err, common.ErrThresholdAlreadyMet):
		return codes.AlreadyExists
	case errors.Is(err, common.ErrNotReady):
		return codes.FailedPrecondition
	case errors.Is(err, common.ErrFinalizationBusy):
		return codes.Aborted
	case common.IsRetryable(err):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	return codes.Internal
}
