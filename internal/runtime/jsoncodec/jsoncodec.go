package jsoncodec

import (
	"encoding/json"
	"io"

	"github.com/bytedance/sonic"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const (
	ContentTypeJSON   = "application/json"
	ContentTypeBinary = "application/octet-stream"
)

var defaultConfig = sonic.ConfigStd

var protoJSONMarshalOptions = protojson.MarshalOptions{
	EmitUnpopulated: true,
}

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Valid(data []byte) bool {
	return defaultConfig.Valid(data)
}

func Encode(w io.Writer, v any) error {
	return defaultConfig.NewEncoder(w).Encode(v)
}

func Decode(r io.Reader, v any) error {
	return defaultConfig.NewDecoder(r).Decode(v)
}

// EncodePayload renders an event payload for the wire and reports its content type.
// Protobuf messages use protojson, raw bytes pass through untouched and
// everything else is JSON encoded.
func EncodePayload(payload any) ([]byte, string, error) {
	switch p := payload.(type) {
	case proto.Message:
		data, err := protoJSONMarshalOptions.Marshal(p)
		return data, ContentTypeJSON, err
	case json.RawMessage:
		return []byte(p), ContentTypeJSON, nil
	case []byte:
		return p, ContentTypeBinary, nil
	default:
		data, err := Marshal(payload)
		return data, ContentTypeJSON, err
	}
}

// DecodePayload reverses EncodePayload. JSON documents decode into generic Go
// values (map[string]any, []any, string, float64, bool).
func DecodePayload(data []byte, contentType string) (any, error) {
	if contentType == ContentTypeBinary {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	var v any
	if err := Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
