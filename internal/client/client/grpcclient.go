package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/docattest/internal/api"
	"github.com/dmitrijs2005/docattest/internal/common"
)

type GRPCClient struct {
	endpointURL string
	conn        grpc.ClientConnInterface
	closer      func() error
}

// withRequestID adds a fresh request id unless the caller already set one.
func withRequestID(ctx context.Context) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	if len(md.Get(api.RequestIDHeader)) > 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, api.RequestIDHeader, uuid.NewString())
}

func requestIDInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withRequestID(ctx), method, req, reply, cc, opts...)
}

func NewAttestationClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(requestIDInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.closer = conn.Close
	return nil
}

func (s *GRPCClient) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *GRPCClient) invoke(ctx context.Context, method string, in, out any) error {
	req, err := api.ToStruct(in)
	if err != nil {
		return common.ErrInvalidInput.Wrap(err, "encode request")
	}

	resp := &structpb.Struct{}
	var trailer metadata.MD
	if err := s.conn.Invoke(ctx, api.FullMethod(method), req, resp, grpc.Trailer(&trailer)); err != nil {
		return mapError(err, trailer)
	}

	if out == nil {
		return nil
	}
	return api.FromStruct(resp, out)
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := s.invoke(ctx, api.MethodPing, struct{}{}, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Publish(ctx context.Context, req api.PublishRequest) (api.Document, error) {
	var doc api.Document
	err := s.invoke(ctx, api.MethodPublish, req, &doc)
	return doc, err
}

func (s *GRPCClient) Submit(ctx context.Context, req api.SubmitRequest) (api.SignatureResult, error) {
	var res api.SignatureResult
	err := s.invoke(ctx, api.MethodSubmit, req, &res)
	return res, err
}

func (s *GRPCClient) Finalize(ctx context.Context, documentID string) (api.FinalAttestation, error) {
	var res api.FinalAttestation
	err := s.invoke(ctx, api.MethodFinalize, api.DocumentIDRequest{DocumentID: documentID}, &res)
	return res, err
}

func (s *GRPCClient) GetDocument(ctx context.Context, documentID string) (api.Document, error) {
	var doc api.Document
	err := s.invoke(ctx, api.MethodGetDocument, api.DocumentIDRequest{DocumentID: documentID}, &doc)
	return doc, err
}

func (s *GRPCClient) Check(ctx context.Context, contentHash string) (api.CheckResult, error) {
	var res api.CheckResult
	err := s.invoke(ctx, api.MethodCheckDocument, api.CheckRequest{ContentHash: contentHash}, &res)
	return res, err
}

// mapError restores the taxonomy kind carried in the trailer. Calls that
// never reached the service map to ErrUnavailable.
func mapError(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)

	if v := trailer.Get(api.ErrorCodeTrailer); len(v) > 0 {
		if code, perr := strconv.ParseUint(v[0], 10, 32); perr == nil {
			if kind := common.ByCode(uint32(code)); kind != nil {
				return kind.New(st.Message())
			}
		}
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
