package rpc

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xtding233/cosstream/internal/cosdata"
)

// Client is a thin StreamService client.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// OpenRequest carries optional dataset overrides.
type OpenRequest struct {
	MinX, MaxX, Std   *float64
	FloatX, Generator string
}

// Open starts a stream and returns its id and effective parameters.
func (c *Client) Open(ctx context.Context, req OpenRequest) (string, cosdata.Params, error) {
	fields := map[string]any{}
	if req.MinX != nil {
		fields["min_x"] = *req.MinX
	}
	if req.MaxX != nil {
		fields["max_x"] = *req.MaxX
	}
	if req.Std != nil {
		fields["std"] = *req.Std
	}
	if req.FloatX != "" {
		fields["floatx"] = req.FloatX
	}
	if req.Generator != "" {
		fields["generator"] = req.Generator
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return "", cosdata.Params{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Open"), in, out); err != nil {
		return "", cosdata.Params{}, err
	}
	id := out.GetFields()["id"].GetStringValue()
	p := cosdata.Params{
		MinX:      out.GetFields()["min_x"].GetNumberValue(),
		MaxX:      out.GetFields()["max_x"].GetNumberValue(),
		Std:       out.GetFields()["std"].GetNumberValue(),
		FloatX:    cosdata.FloatX(out.GetFields()["floatx"].GetStringValue()),
		Generator: out.GetFields()["generator"].GetStringValue(),
	}
	return id, p, nil
}

func (c *Client) Sample(ctx context.Context, id string, n int) (cosdata.Batch, error) {
	in, err := structpb.NewStruct(map[string]any{"stream": id, "n": n})
	if err != nil {
		return nil, err
	}
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, fullMethod("Sample"), in, out); err != nil {
		return nil, err
	}
	return listToBatch(out)
}

// Evaluate applies fn to every row of b on the server.
func (c *Client) Evaluate(ctx context.Context, id, fn string, b cosdata.Batch) ([]float64, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"stream": structpb.NewStringValue(id),
		"fn":     structpb.NewStringValue(fn),
		"rows":   structpb.NewListValue(batchToList(b)),
	}}
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, fullMethod("Evaluate"), in, out); err != nil {
		return nil, err
	}
	return listToValues(out), nil
}

func (c *Client) Position(ctx context.Context, id string) (cosdata.Position, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, fullMethod("GetPosition"), wrapperspb.String(id), out); err != nil {
		return nil, err
	}
	return cosdata.Position(out.GetValue()), nil
}

func (c *Client) SetPosition(ctx context.Context, id string, p cosdata.Position) error {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"stream":   structpb.NewStringValue(id),
		"position": structpb.NewStringValue(encodePosition(p)),
	}}
	return c.cc.Invoke(ctx, fullMethod("SetPosition"), in, new(emptypb.Empty))
}

func (c *Client) Restart(ctx context.Context, id string) error {
	return c.cc.Invoke(ctx, fullMethod("Restart"), wrapperspb.String(id), new(emptypb.Empty))
}

func (c *Client) Close(ctx context.Context, id string) error {
	return c.cc.Invoke(ctx, fullMethod("Close"), wrapperspb.String(id), new(emptypb.Empty))
}

// Stream receives batches of n rows and hands each to fn until the server
// finishes or fn returns an error.
func (c *Client) Stream(ctx context.Context, id string, n, batches int, fn func(cosdata.Batch) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in, err := structpb.NewStruct(map[string]any{"stream": id, "n": n, "batches": batches})
	if err != nil {
		return err
	}
	st, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod("Stream"))
	if err != nil {
		return err
	}
	if err := st.SendMsg(in); err != nil {
		return err
	}
	if err := st.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(structpb.ListValue)
		if err := st.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		b, err := listToBatch(msg)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
}
