package rpc

import (
	"encoding/base64"
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/cosstream/internal/cosdata"
)

func batchToList(b cosdata.Batch) *structpb.ListValue {
	out := &structpb.ListValue{Values: make([]*structpb.Value, len(b))}
	for i, p := range b {
		out.Values[i] = structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
			structpb.NewNumberValue(p.X),
			structpb.NewNumberValue(p.Y),
		}})
	}
	return out
}

func listToBatch(l *structpb.ListValue) (cosdata.Batch, error) {
	out := make(cosdata.Batch, len(l.GetValues()))
	for i, v := range l.GetValues() {
		row := v.GetListValue().GetValues()
		if len(row) != 2 {
			return nil, fmt.Errorf("row %d: want 2 columns, got %d", i, len(row))
		}
		for j, c := range row {
			if _, ok := c.GetKind().(*structpb.Value_NumberValue); !ok {
				return nil, fmt.Errorf("row %d column %d is not a number", i, j)
			}
		}
		out[i] = cosdata.Point{X: row[0].GetNumberValue(), Y: row[1].GetNumberValue()}
	}
	return out, nil
}

func valuesToList(xs []float64) *structpb.ListValue {
	out := &structpb.ListValue{Values: make([]*structpb.Value, len(xs))}
	for i, x := range xs {
		out.Values[i] = structpb.NewNumberValue(x)
	}
	return out
}

func listToValues(l *structpb.ListValue) []float64 {
	out := make([]float64, len(l.GetValues()))
	for i, v := range l.GetValues() {
		out[i] = v.GetNumberValue()
	}
	return out
}

func stringField(s *structpb.Struct, key string) (string, bool) {
	v, ok := s.GetFields()[key]
	if !ok {
		return "", false
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return str.StringValue, true
}

func numberField(s *structpb.Struct, key string) (*float64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	f := n.NumberValue
	return &f, nil
}

func intField(s *structpb.Struct, key string) (int, error) {
	f, err := numberField(s, key)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, fmt.Errorf("missing %s", key)
	}
	if *f != math.Trunc(*f) || *f < 0 || *f > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return int(*f), nil
}

func encodePosition(p cosdata.Position) string { return base64.StdEncoding.EncodeToString(p) }

func decodePosition(s string) (cosdata.Position, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("position is not base64: %w", err)
	}
	return cosdata.Position(b), nil
}
