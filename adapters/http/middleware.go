// Package authhttp adapts the gate and audit pipeline to plain net/http.
package authhttp

import (
	"net/http"

	"github.com/PaulFidika/meterkit/audit"
	core "github.com/PaulFidika/meterkit/core"
	"github.com/PaulFidika/meterkit/identity"
	"github.com/PaulFidika/meterkit/reqid"
)

// Authenticate attaches the caller's identity (possibly Anonymous) to the
// request context. It never rejects.
func Authenticate(gate *core.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, _ := gate.Authenticate(r)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Audit wraps next in an audit scope. A panic is recorded as 500 and
// re-raised.
func Audit(p *audit.Pipeline) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := p.Begin(r)
			ctx, holder := identity.WithHolder(scope.Context(r.Context()))
			w.Header().Set(reqid.Header, scope.RequestID())
			sw := &statusWriter{ResponseWriter: w}

			defer func() {
				if rec := recover(); rec != nil {
					scope.Finish(ctx, http.StatusInternalServerError, holder.Get())
					panic(rec)
				}
				scope.Finish(ctx, sw.Status(), holder.Get())
			}()
			next.ServeHTTP(sw, r.WithContext(ctx))
		})
	}
}

// RequireAuth answers 401 to Anonymous callers. Place it inside Authenticate.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identity.FromContext(r.Context()).IsAuthenticated() {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
