package grpc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/docattest/internal/api"
	"github.com/dmitrijs2005/docattest/internal/logging"
)

// requestIDInterceptor reuses the caller's request id or assigns one, echoes
// it in the response header and tags the context for logging.
func (s *GRPCServer) requestIDInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var id string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(api.RequestIDHeader); len(values) > 0 {
			id = values[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	_ = grpc.SetHeader(ctx, metadata.Pairs(api.RequestIDHeader, id))
	ctx = logging.WithRequestID(ctx, id)

	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	if err != nil {
		s.logger.Warn(ctx, "gRPC call failed", append(args, "error", err)...)
	} else {
		s.logger.Info(ctx, "gRPC call", args...)
	}
	return resp, err
}
