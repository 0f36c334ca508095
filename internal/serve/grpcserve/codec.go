package grpcserve

import "encoding/json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec over plain Go
// values with encoding/json, the same way the manifest avoids protoc-
// generated types (internal/container) — here trading compactness for not
// needing a .proto toolchain anywhere in the build.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return "json" }
