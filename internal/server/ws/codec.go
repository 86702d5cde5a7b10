package ws

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Format selects how envelopes are framed for a client.
type Format string

const (
	FormatJSON  Format = "json"
	FormatProto Format = "proto"
)

// ParseFormat validates the ?format= query value. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatProto:
		return FormatProto, nil
	}
	return "", fmt.Errorf("ws: unsupported format %q", s)
}

func (f Format) messageType() int {
	if f == FormatProto {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// encodeProto re-encodes a JSON envelope as a binary google.protobuf.Struct.
func encodeProto(envelope []byte) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(envelope, &m); err != nil {
		return nil, fmt.Errorf("ws: decode envelope: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("ws: build struct: %w", err)
	}
	return proto.Marshal(s)
}

// DecodeProto turns a binary frame back into a JSON envelope.
func DecodeProto(frame []byte) ([]byte, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(frame, &s); err != nil {
		return nil, fmt.Errorf("ws: unmarshal frame: %w", err)
	}
	return json.Marshal(s.AsMap())
}
