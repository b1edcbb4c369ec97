package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/docattest/internal/api"
)

// AttestationServer is the server API of docattest.v1.Attestation.
type AttestationServer interface {
	Publish(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Finalize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyProof(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterAttestationServer(r grpc.ServiceRegistrar, srv AttestationServer) {
	r.RegisterService(&serviceDesc, srv)
}

type unaryMethod func(AttestationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(name string, m unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return m(srv.(AttestationServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: api.FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return m(srv.(AttestationServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: api.ServiceName,
	HandlerType: (*AttestationServer)(nil),
	Methods: []grpc.MethodDesc{
		handler(api.MethodPublish, AttestationServer.Publish),
		handler(api.MethodSubmit, AttestationServer.Submit),
		handler(api.MethodFinalize, AttestationServer.Finalize),
		handler(api.MethodGetDocument, AttestationServer.GetDocument),
		handler(api.MethodCheckDocument, AttestationServer.CheckDocument),
		handler(api.MethodVerifyProof, AttestationServer.VerifyProof),
		handler(api.MethodPing, AttestationServer.Ping),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docattest/v1/attestation.proto",
}
