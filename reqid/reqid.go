// Package reqid carries the per-request correlation id through contexts.
package reqid

import (
	"context"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// Header is the response header echoing the correlation id.
const Header = "X-Request-ID"

type ctxKey struct{}

// New returns a compact correlation id: base58 of a random UUID.
func New() string {
	u := uuid.New()
	return base58.Encode(u[:])
}

// WithRequestID attaches a correlation id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext reads a correlation id from ctx.
func FromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(ctxKey{})
	s, ok := v.(string)
	return s, ok && s != ""
}
