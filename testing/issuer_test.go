package testing_test

import (
	"errors"
	"testing"

	"github.com/PaulFidika/meterkit/identity"
	jwtkit "github.com/PaulFidika/meterkit/jwt"
	mktesting "github.com/PaulFidika/meterkit/testing"
)

func TestTestIssuer(t *testing.T) {
	ti := mktesting.NewTestIssuer()
	codec := ti.Codec()

	cl, err := codec.Verify(ti.TokenForUser("u-1", "alice@x", identity.RoleAdmin))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if cl.Subject != "alice@x" || cl.UID != "u-1" || cl.Role != identity.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", cl)
	}

	bad := map[string]string{
		"expired":      ti.ExpiredToken("alice@x", identity.RoleUser),
		"foreign":      ti.ForeignToken("alice@x", identity.RoleUser),
		"wrong issuer": ti.WrongIssuerToken("alice@x", identity.RoleUser),
	}
	for name, tok := range bad {
		if _, err := codec.Verify(tok); !errors.Is(err, jwtkit.ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}
