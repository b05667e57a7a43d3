package transport

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"pgregistry/pkg/metrics"
)

// LoggingInterceptor logs and times every incoming peer RPC, labeling
// metrics.RPCDuration by method and status code.
func LoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		method := methodName(info.FullMethod)
		timer := metrics.NewTimer()

		resp, err := handler(ctx, req)

		code := status.Code(err)
		timer.ObserveDurationVec(metrics.RPCDuration, method, code.String())

		if err != nil {
			logger.Warn().Str("method", method).Str("code", code.String()).Err(err).Msg("peer rpc failed")
		} else {
			logger.Debug().Str("method", method).Str("code", code.String()).Msg("peer rpc handled")
		}

		return resp, err
	}
}

// methodName extracts the bare method name from a gRPC FullMethod string
// such as "/pgregistry.Peer/Dispatch".
func methodName(fullMethod string) string {
	parts := strings.Split(fullMethod, "/")
	if len(parts) == 0 {
		return fullMethod
	}
	return parts[len(parts)-1]
}
