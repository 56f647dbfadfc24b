package health

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/orbit-attitude-sim/internal/logging"
)

const runIDMetadataKey = "x-run-id"

// loggingUnaryServerInterceptor attaches a per-request logger annotated with
// the method (and the caller's run_id, when sent) and logs each call at debug.
func loggingUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqLog := base.With(logging.String("method", info.FullMethod))
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if id := firstHeader(md, runIDMetadataKey); id != "" {
				ctx = logging.ContextWithRunID(ctx, id)
				reqLog = reqLog.With(logging.String("run_id", id))
			}
		}
		ctx = logging.ContextWithLogger(ctx, reqLog)

		start := time.Now()
		resp, err := handler(ctx, req)
		reqLog.Debug(ctx, "handled rpc",
			logging.String("code", status.Code(err).String()),
			logging.Any("duration", time.Since(start)),
		)
		return resp, err
	}
}

func firstHeader(md metadata.MD, key string) string {
	if md == nil {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
