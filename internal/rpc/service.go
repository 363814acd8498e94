// Package rpc serves stream sessions over gRPC. Messages are protobuf
// well-known types, so the service needs no generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "cosdata.v1.StreamService"

// StreamServiceServer is the server API for StreamService.
//
// Request structs carry a "stream" id field plus per-method fields:
//
//	Open:        min_x, max_x, std (numbers), floatx, generator (strings), all optional
//	Sample:      n
//	Evaluate:    fn ("energy", "pdf_func", "free_energy", "pdf"), rows [[x, y], ...]
//	SetPosition: position (base64)
//	Stream:      n (rows per message), batches (message count)
type StreamServiceServer interface {
	Open(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Sample(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	Evaluate(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	GetPosition(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	SetPosition(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Restart(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Close(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Stream(*structpb.Struct, grpc.ServerStream) error
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req any, Resp any](name string, call func(StreamServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StreamServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(StreamServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func streamHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(StreamServiceServer).Stream(in, stream)
}

// ServiceDesc is the grpc.ServiceDesc for StreamService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StreamServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Open", StreamServiceServer.Open),
		unary("Sample", StreamServiceServer.Sample),
		unary("Evaluate", StreamServiceServer.Evaluate),
		unary("GetPosition", StreamServiceServer.GetPosition),
		unary("SetPosition", StreamServiceServer.SetPosition),
		unary("Restart", StreamServiceServer.Restart),
		unary("Close", StreamServiceServer.Close),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       streamHandler,
			ServerStreams: true,
		},
	},
	Metadata: "cosdata/v1/stream.proto",
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv StreamServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
