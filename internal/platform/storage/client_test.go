package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestParseObjectURL(t *testing.T) {
	ref, err := ParseObjectURL("gs://storefront-config/pricing/coupons.yaml")
	if err != nil {
		t.Fatalf("ParseObjectURL: %v", err)
	}
	if ref.Bucket != "storefront-config" || ref.Object != "pricing/coupons.yaml" {
		t.Fatalf("unexpected ref %+v", ref)
	}
	if ref.String() != "gs://storefront-config/pricing/coupons.yaml" {
		t.Fatalf("unexpected string form %q", ref.String())
	}

	cases := map[string]error{
		"https://example.com/coupons.yaml": errInvalidScheme,
		"gs:///coupons.yaml":               errInvalidBucket,
		"gs://bucket/":                     errInvalidObject,
	}
	for raw, want := range cases {
		if _, err := ParseObjectURL(raw); !errors.Is(err, want) {
			t.Fatalf("%s: expected %v, got %v", raw, want, err)
		}
	}
}

func TestIsObjectURL(t *testing.T) {
	if !IsObjectURL(" gs://bucket/object") {
		t.Fatalf("expected gs url to be recognised")
	}
	if IsObjectURL("coupons.yaml") {
		t.Fatalf("local path must not be treated as object url")
	}
}

func TestReadObject(t *testing.T) {
	var opened ObjectRef
	client, err := NewClient(context.Background(), nil, WithOpener(func(_ context.Context, ref ObjectRef) (io.ReadCloser, error) {
		opened = ref
		return io.NopCloser(strings.NewReader("coupons: []\n")), nil
	}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	data, err := client.ReadObject(context.Background(), "gs://cfg/coupons.yaml")
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	if string(data) != "coupons: []\n" {
		t.Fatalf("unexpected data %q", data)
	}
	if opened.Bucket != "cfg" || opened.Object != "coupons.yaml" {
		t.Fatalf("unexpected ref %+v", opened)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReadObjectErrors(t *testing.T) {
	notFound, _ := NewClient(context.Background(), nil, WithOpener(func(_ context.Context, ref ObjectRef) (io.ReadCloser, error) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
	}))
	if _, err := notFound.ReadObject(context.Background(), "gs://cfg/missing.yaml"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	large, _ := NewClient(context.Background(), nil, WithOpener(func(context.Context, ObjectRef) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(make([]byte, maxObjectSize+1))), nil
	}))
	if _, err := large.ReadObject(context.Background(), "gs://cfg/huge.yaml"); !errors.Is(err, errObjectTooLarge) {
		t.Fatalf("expected size error, got %v", err)
	}

	var nilClient *Client
	if _, err := nilClient.ReadObject(context.Background(), "gs://cfg/x"); !errors.Is(err, errNoOpener) {
		t.Fatalf("expected opener error, got %v", err)
	}
}
