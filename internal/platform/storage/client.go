package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// maxObjectSize caps reads of configuration objects such as coupon catalogs.
const maxObjectSize = 1 << 20

var (
	errInvalidBucket  = errors.New("storage: bucket name is required")
	errInvalidObject  = errors.New("storage: object name is required")
	errInvalidScheme  = errors.New("storage: object url must use the gs:// scheme")
	errObjectTooLarge = errors.New("storage: object exceeds size limit")
	errNoOpener       = errors.New("storage: object opener is required")

	// ErrObjectNotFound is returned when the referenced object does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")
)

// ObjectRef names one Cloud Storage object.
type ObjectRef struct {
	Bucket string
	Object string
}

func (r ObjectRef) String() string {
	return "gs://" + r.Bucket + "/" + r.Object
}

// IsObjectURL reports whether raw references a Cloud Storage object.
func IsObjectURL(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "gs://")
}

// ParseObjectURL parses gs://bucket/path/to/object.
func ParseObjectURL(raw string) (ObjectRef, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ObjectRef{}, fmt.Errorf("storage: parse object url: %w", err)
	}
	if u.Scheme != "gs" {
		return ObjectRef{}, errInvalidScheme
	}
	ref := ObjectRef{Bucket: strings.TrimSpace(u.Host), Object: strings.TrimPrefix(u.Path, "/")}
	if ref.Bucket == "" {
		return ObjectRef{}, errInvalidBucket
	}
	if strings.TrimSpace(ref.Object) == "" {
		return ObjectRef{}, errInvalidObject
	}
	return ref, nil
}

// ObjectOpener opens a reader for an object.
type ObjectOpener func(ctx context.Context, ref ObjectRef) (io.ReadCloser, error)

// Client reads small configuration objects from Cloud Storage.
type Client struct {
	open  ObjectOpener
	close func() error
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithOpener replaces the object opener, primarily for tests.
func WithOpener(open ObjectOpener) ClientOption {
	return func(c *Client) {
		if open != nil {
			c.open = open
			c.close = nil
		}
	}
}

// NewClient connects to Cloud Storage with the supplied API options unless WithOpener is given.
func NewClient(ctx context.Context, gcpOpts []option.ClientOption, opts ...ClientOption) (*Client, error) {
	client := &Client{}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.open != nil {
		return client, nil
	}

	gcs, err := storage.NewClient(ctx, gcpOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: new client: %w", err)
	}
	client.open = func(ctx context.Context, ref ObjectRef) (io.ReadCloser, error) {
		reader, err := gcs.Bucket(ref.Bucket).Object(ref.Object).NewReader(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
			}
			return nil, err
		}
		return reader, nil
	}
	client.close = gcs.Close
	return client, nil
}

// ReadObject returns the full contents of the object at rawURL.
func (c *Client) ReadObject(ctx context.Context, rawURL string) ([]byte, error) {
	if c == nil || c.open == nil {
		return nil, errNoOpener
	}
	ref, err := ParseObjectURL(rawURL)
	if err != nil {
		return nil, err
	}
	reader, err := c.open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", ref, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", ref, err)
	}
	if len(data) > maxObjectSize {
		return nil, errObjectTooLarge
	}
	return data, nil
}

// Close releases the underlying Cloud Storage client.
func (c *Client) Close() error {
	if c == nil || c.close == nil {
		return nil
	}
	return c.close()
}
