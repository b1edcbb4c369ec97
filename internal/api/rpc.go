package api

import (
	"encoding/json"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/docattest/internal/common"
)

// gRPC service and method names. Every method takes and returns a
// google.protobuf.Struct holding the JSON form of the types in this package.
const (
	ServiceName = "docattest.v1.Attestation"

	MethodPublish       = "Publish"
	MethodSubmit        = "Submit"
	MethodFinalize      = "Finalize"
	MethodGetDocument   = "GetDocument"
	MethodCheckDocument = "CheckDocument"
	MethodVerifyProof   = "VerifyProof"
	MethodPing          = "Ping"

	// ErrorCodeTrailer carries the taxonomy code of a failed call.
	ErrorCodeTrailer = "docattest-error-code"
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "x-request-id"
)

// FullMethod returns the gRPC path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ToStruct converts a wire value into a protobuf Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromStruct decodes s into v. A nil Struct decodes as an empty object.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return common.ErrInvalidInput.Wrap(err, "encode request")
	}
	if err := json.Unmarshal(b, v); err != nil {
		return common.ErrInvalidInput.Wrap(err, "decode request")
	}
	return nil
}
