package store

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"domino-hall/internal/config"

	"github.com/jackc/pgx/v5"
)

var schemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// openStore returns a migrated Store living in a throwaway schema that is
// dropped when the test ends. Tests skip when TEST_POSTGRES_DSN is unset.
func openStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip postgres: %v", err)
	}
	ctx := context.Background()
	schema := fmt.Sprintf("%s%d", cfg.SchemaPrefix, time.Now().UnixNano())
	if !schemaNamePattern.MatchString(schema) {
		t.Fatalf("schema %q is not a plain identifier", schema)
	}
	ident := pgx.Identifier{schema}.Sanitize()

	admin, err := pgx.Connect(ctx, cfg.TestPostgresDSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+ident); err != nil {
		_ = admin.Close(ctx)
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+ident+" CASCADE")
		_ = admin.Close(context.Background())
	})

	st, err := New(withSearchPath(cfg.TestPostgresDSN, schema))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st, ctx
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}
