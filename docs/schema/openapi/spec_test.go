package openapi

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestSpecReturnsCopyAndMatchesFile(t *testing.T) {
	want, err := os.ReadFile(filepath.Clean("secretsanta.yaml"))
	if err != nil {
		t.Fatalf("read secretsanta.yaml: %v", err)
	}

	spec := Spec()
	if len(spec) == 0 {
		t.Fatal("Spec returned empty content")
	}
	if !bytes.Equal(spec, want) {
		t.Fatalf("Spec does not match embedded OpenAPI contents")
	}

	spec[0] ^= 0xFF
	if bytes.Equal(spec, APISpec) {
		t.Fatalf("Spec did not return a defensive copy")
	}
	if !bytes.Equal(Spec(), want) {
		t.Fatalf("Spec mutation leaked into embedded content")
	}
}

func TestSpecListsEveryRoute(t *testing.T) {
	for _, route := range []string{"/participants:", "/session:", "/view:", "/stream:", "/profiles/{id}:", "/suggestions:", "/draw:", "/links:", "/avatars/{id}:"} {
		if !bytes.Contains(APISpec, []byte(route)) {
			t.Fatalf("route %s missing from OpenAPI document", route)
		}
	}
}
