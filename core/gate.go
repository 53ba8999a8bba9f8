package core

import (
	"context"
	"net/http"
	"strings"

	"github.com/PaulFidika/meterkit/identity"
	jwtkit "github.com/PaulFidika/meterkit/jwt"
	"github.com/sirupsen/logrus"
)

// Gate turns an Authorization header into an identity. It never fails:
// anything that does not verify is Anonymous.
type Gate struct {
	codec *jwtkit.Codec
	log   logrus.FieldLogger
}

func NewGate(codec *jwtkit.Codec, log logrus.FieldLogger) *Gate {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gate{codec: codec, log: log}
}

// Resolve verifies the bearer token in header, if any.
func (g *Gate) Resolve(header string) identity.Identity {
	tok := bearerToken(header)
	if tok == "" {
		return identity.Anonymous()
	}
	claims, err := g.codec.Verify(tok)
	if err != nil {
		g.log.WithError(err).Debug("bearer token rejected")
		return identity.Anonymous()
	}
	return claims.Identity()
}

// Authenticate resolves the first Authorization header of r and attaches the
// result to the returned context.
func (g *Gate) Authenticate(r *http.Request) (context.Context, identity.Identity) {
	var header string
	if vals := r.Header.Values("Authorization"); len(vals) > 0 {
		header = vals[0]
	}
	id := g.Resolve(header)
	return identity.Attach(r.Context(), id), id
}

func bearerToken(header string) string {
	h := strings.TrimSpace(header)
	if len(h) >= 6 && strings.EqualFold(h[:6], "bearer") {
		rest := h[6:]
		if rest == "" {
			return ""
		}
		if rest[0] == ' ' || rest[0] == '\t' {
			return strings.TrimSpace(rest)
		}
	}
	return h
}
