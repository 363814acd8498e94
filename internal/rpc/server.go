package rpc

import (
	"context"
	"errors"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xtding233/cosstream/internal/config"
	"github.com/xtding233/cosstream/internal/cosdata"
	"github.com/xtding233/cosstream/internal/stream"
)

// maxRows caps rows per Sample call and per Stream message.
const maxRows = 1 << 20

// Server implements StreamServiceServer on top of a registry.
type Server struct {
	reg *stream.Registry
}

var _ StreamServiceServer = (*Server)(nil)

func NewServer(reg *stream.Registry) *Server { return &Server{reg: reg} }

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stream.ErrUnknownStream), errors.Is(err, stream.ErrUnknownCheckpoint):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, cosdata.ErrNotImplemented):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, cosdata.ErrInvalidParams), errors.Is(err, cosdata.ErrBadPosition),
		errors.Is(err, stream.ErrUnknownFunc):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		log.Printf("grpc: %v", err)
		return status.Error(codes.Internal, err.Error())
	}
}

func invalid(err error) error { return status.Error(codes.InvalidArgument, err.Error()) }

func (s *Server) session(req *structpb.Struct) (*stream.Session, error) {
	id, ok := stringField(req, "stream")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "missing stream")
	}
	sess, err := s.reg.Get(id)
	return sess, toStatus(err)
}

func paramsStruct(id string, p cosdata.Params) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":        id,
		"min_x":     p.MinX,
		"max_x":     p.MaxX,
		"std":       p.Std,
		"floatx":    string(p.FloatX),
		"generator": p.Generator,
	})
}

func (s *Server) Open(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var o config.Overrides
	var err error
	if o.MinX, err = numberField(req, "min_x"); err != nil {
		return nil, invalid(err)
	}
	if o.MaxX, err = numberField(req, "max_x"); err != nil {
		return nil, invalid(err)
	}
	if o.Std, err = numberField(req, "std"); err != nil {
		return nil, invalid(err)
	}
	if fx, ok := stringField(req, "floatx"); ok {
		o.FloatX = &fx
	}
	if g, ok := stringField(req, "generator"); ok {
		o.Generator = &g
	}
	p, err := o.Apply(s.reg.Defaults())
	if err != nil {
		return nil, invalid(err)
	}
	sess, err := s.reg.Open(p)
	if err != nil {
		return nil, toStatus(err)
	}
	return paramsStruct(sess.ID, sess.Params())
}

func rowCount(req *structpb.Struct) (int, error) {
	n, err := intField(req, "n")
	if err != nil {
		return 0, invalid(err)
	}
	if n > maxRows {
		return 0, status.Errorf(codes.InvalidArgument, "n must be <= %d", maxRows)
	}
	return n, nil
}

func (s *Server) Sample(_ context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	sess, err := s.session(req)
	if err != nil {
		return nil, err
	}
	n, err := rowCount(req)
	if err != nil {
		return nil, err
	}
	b, err := sess.Batch(n)
	if err != nil {
		return nil, toStatus(err)
	}
	return batchToList(b), nil
}

// Evaluate returns one number per row, or [dx, dy] per row for fn "grad".
func (s *Server) Evaluate(_ context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	sess, err := s.session(req)
	if err != nil {
		return nil, err
	}
	fn, _ := stringField(req, "fn")
	b, err := listToBatch(req.GetFields()["rows"].GetListValue())
	if err != nil {
		return nil, invalid(err)
	}
	if fn == "grad" {
		return batchToList(sess.Gradient(b)), nil
	}
	values, err := sess.Evaluate(fn, b)
	if err != nil {
		return nil, toStatus(err)
	}
	return valuesToList(values), nil
}

func (s *Server) GetPosition(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	sess, err := s.reg.Get(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	pos, err := sess.Position()
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(pos), nil
}

func (s *Server) SetPosition(_ context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	sess, err := s.session(req)
	if err != nil {
		return nil, err
	}
	enc, ok := stringField(req, "position")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "missing position")
	}
	pos, err := decodePosition(enc)
	if err != nil {
		return nil, invalid(err)
	}
	if err := sess.SetPosition(pos); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Restart(_ context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	sess, err := s.reg.Get(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if err := sess.Restart(); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Close(_ context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.reg.Close(req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Stream sends `batches` messages of n rows each, stopping early when the
// client goes away.
func (s *Server) Stream(req *structpb.Struct, ss grpc.ServerStream) error {
	sess, err := s.session(req)
	if err != nil {
		return err
	}
	n, err := rowCount(req)
	if err != nil {
		return err
	}
	batches, err := intField(req, "batches")
	if err != nil {
		return invalid(err)
	}
	ctx := ss.Context()
	for i := 0; i < batches; i++ {
		if err := ctx.Err(); err != nil {
			return toStatus(err)
		}
		b, err := sess.Batch(n)
		if err != nil {
			return toStatus(err)
		}
		if err := ss.SendMsg(batchToList(b)); err != nil {
			return err
		}
	}
	return nil
}
