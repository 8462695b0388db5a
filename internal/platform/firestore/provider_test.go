package firestore

import (
	"context"
	"errors"
	"testing"
)

func TestProviderRequiresProject(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("FIRESTORE_EMULATOR_HOST", "")
	p := NewProvider("  ")
	if _, err := p.Client(context.Background()); !errors.Is(err, errProjectRequired) {
		t.Fatalf("expected project error, got %v", err)
	}
}

func TestProviderFallsBackToEnvironment(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "env-project")
	t.Setenv("FIRESTORE_EMULATOR_HOST", "localhost:8681")
	p := NewProvider("")
	if p.projectID != "env-project" || p.emulatorHost != "localhost:8681" {
		t.Fatalf("unexpected provider %+v", p)
	}

	explicit := NewProvider("storefront", WithEmulatorHost("127.0.0.1:9000"))
	if explicit.projectID != "storefront" || explicit.emulatorHost != "127.0.0.1:9000" {
		t.Fatalf("explicit values must win, got %+v", explicit)
	}
}

func TestProviderClosed(t *testing.T) {
	p := NewProvider("storefront")
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := p.Client(context.Background()); !errors.Is(err, ErrProviderClosed) {
		t.Fatalf("expected ErrProviderClosed, got %v", err)
	}
}
