// Package client talks to the docattest gRPC endpoint on behalf of the
// signer CLI.
//
// GRPCClient encodes the api wire types as google.protobuf.Struct messages,
// attaches a request id to every call and maps failures back onto the
// common error taxonomy using the error-code trailer set by the server.
// Transport failures without a code become ErrUnavailable.
package client
