package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/ablauf-dev/ablauf/pkg/api"
)

// Logging returns middleware that writes one structured log line per run:
// request ID, target entity, stream flag, duration, and the error when the
// run failed. HTTP-level detail (method, path, status) belongs to the
// adapter, not this layer.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ResponseCreator) ResponseCreator {
		return ResponseCreatorFunc(func(ctx context.Context, req *api.CreateResponseRequest, w ResponseWriter) error {
			start := time.Now()
			err := next.CreateResponse(ctx, req, w)

			level, msg := slog.LevelInfo, "request completed"
			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("entity", req.Model),
				slog.Bool("stream", req.Stream),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				level, msg = slog.LevelError, "request failed"
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			logger.LogAttrs(ctx, level, msg, attrs...)
			return err
		})
	}
}
