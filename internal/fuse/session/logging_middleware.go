package session

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/rfratto/asyncfuse/internal/fuse"
)

// NewLoggingMiddleware returns a middleware which logs every request at the
// debug level.
func NewLoggingMiddleware(l log.Logger) Middleware {
	if l == nil {
		l = log.NewNopLogger()
	}
	return &loggingMiddleware{l: l}
}

type loggingMiddleware struct {
	l log.Logger
}

func (lm *loggingMiddleware) HandleRequest(ctx context.Context, hdr *fuse.RequestHeader, req fuse.Request, invoker Invoker) (fuse.Response, error) {
	start := time.Now()
	level.Debug(lm.l).Log("msg", "starting request", "op", hdr.Op, "id", hdr.RequestID, "node", hdr.Node, "pid", hdr.PID)
	resp, err := invoker(ctx, hdr, req)
	level.Debug(lm.l).Log("msg", "finished request", "op", hdr.Op, "id", hdr.RequestID, "duration", time.Since(start), "err", err)
	return resp, err
}
