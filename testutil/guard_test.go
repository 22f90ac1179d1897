package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := map[string]bool{
		"secretsanta/internal/core":  true,
		"example.com/mod/internal/x": true,
		"secretsanta/pkg/domain":     false,
		"context":                    false,
	}
	for in, want := range cases {
		if got := InternalImportForbidden(in); got != want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", in, got, want)
		}
	}
}

func TestDriverImportForbiddenPredicate(t *testing.T) {
	cases := map[string]bool{
		"database/sql":                            true,
		"database/sql/driver":                     true,
		"modernc.org/sqlite":                      true,
		"github.com/jackc/pgx/v5/stdlib":          true,
		"github.com/aws/aws-sdk-go-v2/service/s3": true,
		"github.com/valkey-io/valkey-go":          true,
		"net/http":                                true,
		"net/url":                                 false,
		"encoding/json":                           false,
	}
	for in, want := range cases {
		if got := DriverImportForbidden(in); got != want {
			t.Fatalf("DriverImportForbidden(%q)=%v want %v", in, got, want)
		}
	}
}

func TestAnyCombinesPredicates(t *testing.T) {
	pred := Any(InternalImportForbidden, DriverImportForbidden)
	if !pred("net/http") || !pred("secretsanta/internal/blob") || pred("fmt") {
		t.Fatalf("combined predicate mismatch")
	}
}

func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")
}

type captureFatal struct{ msg string }

func (c *captureFatal) Fatalf(format string, args ...any) { c.msg = fmt.Sprintf(format, args...) }

func TestDirectImportViolationsReported(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport _ \"net/http\"\n")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), []byte("package tmp\nimport _ \"database/sql\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, DriverImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.HasPrefix(viols[0], "net/http") {
		t.Fatalf("expected only the non-test import flagged, got %v", viols)
	}
	var c captureFatal
	failIfViolations(&c, "direct imports", "reason", viols)
	if !strings.Contains(c.msg, "net/http (in x.go)") {
		t.Fatalf("unexpected failure message %q", c.msg)
	}
}

func TestTransitiveViolationsUseGoList(t *testing.T) {
	orig := goListDeps
	t.Cleanup(func() { goListDeps = orig })
	goListDeps = func(string) ([]byte, error) {
		return []byte("context\nsecretsanta/pkg/domain\nsecretsanta/internal/core\n\n"), nil
	}
	viols, _, err := transitiveDependencyViolations("./...", InternalImportForbidden)
	if err != nil {
		t.Fatalf("violations: %v", err)
	}
	if len(viols) != 1 || viols[0] != "secretsanta/internal/core" {
		t.Fatalf("unexpected violations %v", viols)
	}
}
