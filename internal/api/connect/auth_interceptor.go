package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
)

const (
	// ControlTokenHeader is the header name for the remote control token.
	ControlTokenHeader = "X-Control-Token"
)

// NewTokenInterceptor creates an interceptor that validates the control token
// from request metadata. An empty token disables the check.
func NewTokenInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token == "" {
				return next(ctx, req)
			}

			// Extract token from metadata
			got := req.Header().Get(ControlTokenHeader)
			if got == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}

			// Validate token
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}

			return next(ctx, req)
		}
	}
}
