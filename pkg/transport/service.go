package transport

import (
	"context"

	"google.golang.org/grpc"

	"pgregistry/pkg/types"
)

// PeerHandler is the server-side contract transport.Peer dispatches
// incoming RPCs to. registry.Service implements it; transport never imports
// pkg/registry, so the dependency only runs one way, from cmd/pgregistryd.
type PeerHandler interface {
	HandleDispatch(ctx context.Context, cmd types.Command) (types.MutationReply, error)
	HandleExchange(ctx context.Context, payload types.ExchangePayload) error
	HandleHello(ctx context.Context, hello types.HelloMsg) error
	HandleResync(ctx context.Context, resync types.ResyncMsg) error
	HandleFetchState(ctx context.Context, group string) (types.NodeSnapshot, error)
	HandleAcquireLock(ctx context.Context, group string) (bool, error)
	HandleReleaseLock(ctx context.Context, group string) error
}

type dispatchRequest struct{ Cmd types.Command }
type dispatchResponse struct{ Reply types.MutationReply }

type exchangeRequest struct{ Payload types.ExchangePayload }
type exchangeResponse struct{}

type helloRequest struct{ Hello types.HelloMsg }
type helloResponse struct{}

type resyncRequest struct{ Resync types.ResyncMsg }
type resyncResponse struct{}

type fetchStateRequest struct{ Group string }
type fetchStateResponse struct{ Snapshot types.NodeSnapshot }

type acquireLockRequest struct{ Group string }
type acquireLockResponse struct{ Granted bool }

type releaseLockRequest struct{ Group string }
type releaseLockResponse struct{}

func dispatchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(dispatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		reply, err := srv.(PeerHandler).HandleDispatch(ctx, in.Cmd)
		return &dispatchResponse{Reply: reply}, err
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Dispatch"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		reply, err := srv.(PeerHandler).HandleDispatch(ctx, req.(*dispatchRequest).Cmd)
		return &dispatchResponse{Reply: reply}, err
	}
	return interceptor(ctx, in, info, handler)
}

func exchangeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(exchangeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		err := srv.(PeerHandler).HandleExchange(ctx, in.Payload)
		return &exchangeResponse{}, err
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/PushExchange"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		err := srv.(PeerHandler).HandleExchange(ctx, req.(*exchangeRequest).Payload)
		return &exchangeResponse{}, err
	}
	return interceptor(ctx, in, info, handler)
}

func helloHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(helloRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		err := srv.(PeerHandler).HandleHello(ctx, in.Hello)
		return &helloResponse{}, err
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Hello"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		err := srv.(PeerHandler).HandleHello(ctx, req.(*helloRequest).Hello)
		return &helloResponse{}, err
	}
	return interceptor(ctx, in, info, handler)
}

func resyncHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(resyncRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		err := srv.(PeerHandler).HandleResync(ctx, in.Resync)
		return &resyncResponse{}, err
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Resync"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		err := srv.(PeerHandler).HandleResync(ctx, req.(*resyncRequest).Resync)
		return &resyncResponse{}, err
	}
	return interceptor(ctx, in, info, handler)
}

func fetchStateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(fetchStateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		snapshot, err := srv.(PeerHandler).HandleFetchState(ctx, in.Group)
		return &fetchStateResponse{Snapshot: snapshot}, err
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/FetchState"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		snapshot, err := srv.(PeerHandler).HandleFetchState(ctx, req.(*fetchStateRequest).Group)
		return &fetchStateResponse{Snapshot: snapshot}, err
	}
	return interceptor(ctx, in, info, handler)
}

func acquireLockHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(acquireLockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		granted, err := srv.(PeerHandler).HandleAcquireLock(ctx, in.Group)
		return &acquireLockResponse{Granted: granted}, err
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/AcquireLock"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		granted, err := srv.(PeerHandler).HandleAcquireLock(ctx, req.(*acquireLockRequest).Group)
		return &acquireLockResponse{Granted: granted}, err
	}
	return interceptor(ctx, in, info, handler)
}

func releaseLockHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(releaseLockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		err := srv.(PeerHandler).HandleReleaseLock(ctx, in.Group)
		return &releaseLockResponse{}, err
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/ReleaseLock"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		err := srv.(PeerHandler).HandleReleaseLock(ctx, req.(*releaseLockRequest).Group)
		return &releaseLockResponse{}, err
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceName identifies the service in gRPC's method routing, in place of
// the package.Service name protoc would normally generate.
const ServiceName = "pgregistry.Peer"

// ServiceDesc is the hand-rolled equivalent of a protoc-generated
// grpc.ServiceDesc: it wires method names to handlers without a .proto file,
// since every request/response pair here is a plain Go struct carried over
// the JSON codec rather than a generated protobuf message.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PeerHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
		{MethodName: "PushExchange", Handler: exchangeHandler},
		{MethodName: "Hello", Handler: helloHandler},
		{MethodName: "Resync", Handler: resyncHandler},
		{MethodName: "FetchState", Handler: fetchStateHandler},
		{MethodName: "AcquireLock", Handler: acquireLockHandler},
		{MethodName: "ReleaseLock", Handler: releaseLockHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pgregistry/peer.proto",
}
