package message

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/dynamicpb"

	pb "modelwrap/api/proto/v1"
)

var (
	unmarshalOpts = protojson.UnmarshalOptions{DiscardUnknown: true}
	marshalOpts   = protojson.MarshalOptions{}
)

// FromProto converts a gRPC SeldonMessage through its canonical JSON form.
func FromProto(in *dynamicpb.Message) (*Message, error) {
	if in == nil {
		return &Message{}, nil
	}
	b, err := marshalOpts.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("message: protojson marshal: %w", err)
	}
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message: decode %s: %w", pb.SeldonMessageDescriptor().FullName(), err)
	}
	return &m, nil
}

// ToProto converts m into a gRPC SeldonMessage.
func ToProto(m *Message) (*dynamicpb.Message, error) {
	out := pb.NewSeldonMessage()
	if m == nil {
		return out, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("message: json marshal: %w", err)
	}
	if err := unmarshalOpts.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("message: protojson unmarshal: %w", err)
	}
	return out, nil
}
