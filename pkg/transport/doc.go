/*
Package transport is the inter-node RPC layer the registry, lock, and
exchange protocols ride on. It is a real gRPC service — a grpc.Server,
grpc.ClientConn, and grpc.ServiceDesc — but its messages are plain Go
structs carried over a JSON encoding.Codec (codec.go) registered as the
"json" content-subtype, rather than protobuf messages generated from a
.proto file. service.go hand-writes the ServiceDesc a protoc-generated
*_grpc.pb.go would normally contain; server.go wraps dialing, connection
reuse, and the outbound method set around it.
*/
package transport
