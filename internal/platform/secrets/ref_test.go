package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		raw     string
		want    Ref
		wantErr error
	}{
		{raw: "secret://session_signing_key", want: Ref{Name: "session_signing_key"}},
		{raw: " sm://catalog-token ", want: Ref{Name: "catalog-token"}},
		{raw: "secret://catalog_token?version=3&project=shop-stg", want: Ref{Name: "catalog_token", Version: "3", Project: "shop-stg"}},
		{raw: "", wantErr: errEmptyRef},
		{raw: "https://example.com/key", wantErr: errRefScheme},
		{raw: "plain-value", wantErr: errRefScheme},
		{raw: "secret://nested/name", wantErr: errRefSecretName},
		{raw: "secret://", wantErr: errRefSecretName},
	}
	for _, tc := range tests {
		got, err := ParseRef(tc.raw)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("ParseRef(%q) error = %v, want %v", tc.raw, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseRef(%q) unexpected error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseRef(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestRefCanonicalDropsOverrides(t *testing.T) {
	ref, err := ParseRef("sm://session_signing_key?version=2")
	if err != nil {
		t.Fatalf("ParseRef: %v", err)
	}
	if got := ref.Canonical(); got != "secret://session_signing_key" {
		t.Fatalf("unexpected canonical %q", got)
	}
	if got := ref.resourceName("p1", "2"); got != "projects/p1/secrets/session_signing_key/versions/2" {
		t.Fatalf("unexpected resource name %q", got)
	}
}

func TestLocalFileLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".secrets.local")
	contents := "# dev secrets\n" +
		"sm://session_signing_key=base64+key==\n" +
		"catalog_token = bare-token\n" +
		"not a pair\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	local := newLocalFile(path)

	cases := map[string]string{
		"session_signing_key": "base64+key==",
		"catalog_token":       "bare-token",
	}
	for name, want := range cases {
		got, err := local.lookup(Ref{Name: name, Version: "3"})
		if err != nil || got != want {
			t.Fatalf("%s: got %q, %v; want %q", name, got, err, want)
		}
	}
	if _, err := local.lookup(Ref{Name: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalFileMissingOrDisabled(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent")} {
		if _, err := newLocalFile(path).lookup(Ref{Name: "x"}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("path %q: expected ErrNotFound, got %v", path, err)
		}
	}
}

func TestLocalFileRejectsInvalidKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte("secret://bad/name=value\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := newLocalFile(path).lookup(Ref{Name: "bad"})
	if !errors.Is(err, errRefSecretName) {
		t.Fatalf("expected invalid name error, got %v", err)
	}
}
