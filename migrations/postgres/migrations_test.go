package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsPaired(t *testing.T) {
	ups, downs := map[string]bool{}, map[string]bool{}
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	if len(ups) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	for k := range ups {
		if !downs[k] {
			t.Fatalf("migration %s has no down file", k)
		}
	}
	if n := len(Migrations.Sorted()); n != len(ups) {
		t.Fatalf("expected %d registered migrations, got %d", len(ups), n)
	}
}

func TestEntitlementsSchemaBackstops(t *testing.T) {
	b, err := fs.ReadFile(FS, "20250101000002_entitlements.up.sql")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	sql := string(b)
	for _, want := range []string{"CHECK (remaining >= 0)", "UNIQUE (user_id, sku)"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("expected %q in entitlements schema", want)
		}
	}
}
