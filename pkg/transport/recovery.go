package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/ablauf-dev/ablauf/pkg/api"
)

// Recovery returns middleware that turns a panicking run into a server
// error instead of tearing down the connection handler. The stack goes to
// the log; the server keeps accepting requests.
func Recovery() Middleware {
	return func(next ResponseCreator) ResponseCreator {
		return ResponseCreatorFunc(func(ctx context.Context, req *api.CreateResponseRequest, w ResponseWriter) (retErr error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				slog.Error("panic during run",
					slog.String("request_id", RequestIDFromContext(ctx)),
					slog.String("entity", req.Model),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
			}()
			return next.CreateResponse(ctx, req, w)
		})
	}
}
