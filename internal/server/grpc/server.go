// Package grpc exposes the attestation services over gRPC. Messages are
// google.protobuf.Struct values holding the JSON types of package api.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/docattest/internal/logging"
	"github.com/dmitrijs2005/docattest/internal/server/identity"
	"github.com/dmitrijs2005/docattest/internal/server/models"
	"github.com/dmitrijs2005/docattest/internal/server/services"
)

type Lifecycle interface {
	Publish(ctx context.Context, req services.PublishRequest) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	Check(ctx context.Context, contentHash string) (services.CheckResult, error)
}

type Collector interface {
	Submit(ctx context.Context, req services.SubmitRequest) (*services.SignatureResult, error)
}

type Finalizer interface {
	Finalize(ctx context.Context, documentID string) (*services.FinalAttestationResult, error)
}

type GRPCServer struct {
	address   string
	lifecycle Lifecycle
	collector Collector
	finalizer Finalizer
	verifier  identity.Verifier
	logger    logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, lc Lifecycle, c Collector, f Finalizer, v identity.Verifier) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		lifecycle: lc,
		collector: c,
		finalizer: f,
		verifier:  v,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.requestIDInterceptor, s.loggingInterceptor))
	RegisterAttestationServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
