package session

import (
	"context"

	"github.com/rfratto/asyncfuse/internal/fuse"
)

// Middleware hooks into requests.
type Middleware interface {
	// HandleRequest handles an individual request.
	HandleRequest(ctx context.Context, hdr *fuse.RequestHeader, req fuse.Request, invoker Invoker) (fuse.Response, error)
}

// Invoker is called by Middleware to complete requests.
type Invoker func(ctx context.Context, hdr *fuse.RequestHeader, req fuse.Request) (fuse.Response, error)

// FuncMiddleware is a function that implements Middleware.
type FuncMiddleware func(ctx context.Context, hdr *fuse.RequestHeader, req fuse.Request, i Invoker) (fuse.Response, error)

func (f FuncMiddleware) HandleRequest(ctx context.Context, h *fuse.RequestHeader, req fuse.Request, i Invoker) (fuse.Response, error) {
	return f(ctx, h, req, i)
}

type chainMiddleware []Middleware

func (c chainMiddleware) HandleRequest(ctx context.Context, h *fuse.RequestHeader, req fuse.Request, invoker Invoker) (fuse.Response, error) {
	if len(c) == 0 {
		return invoker(ctx, h, req)
	}

	var (
		index        int
		chainInvoker Invoker
	)

	chainInvoker = func(ctx context.Context, h *fuse.RequestHeader, req fuse.Request) (fuse.Response, error) {
		mw := c[index]
		index++

		var next Invoker
		if index == len(c) {
			next = invoker
		} else {
			next = chainInvoker
		}

		return mw.HandleRequest(ctx, h, req, next)
	}
	return chainInvoker(ctx, h, req)
}
