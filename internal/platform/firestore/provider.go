package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const dialTimeout = 10 * time.Second

var (
	// ErrProviderClosed is returned by Client after Close.
	ErrProviderClosed = errors.New("firestore: provider is closed")

	errProjectRequired = errors.New("firestore: project id is required")
)

// Provider owns the process-wide Firestore client. The client is dialled on first use so the API
// can start before Firestore is reachable; readiness reports the failure instead.
type Provider struct {
	projectID    string
	emulatorHost string
	clientOpts   []option.ClientOption

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

// ProviderOption customises a Provider.
type ProviderOption func(*Provider)

// WithEmulatorHost points the client at a local emulator without credentials.
func WithEmulatorHost(host string) ProviderOption {
	return func(p *Provider) {
		p.emulatorHost = strings.TrimSpace(host)
	}
}

// WithClientOptions appends Google API client options, e.g. a credentials file.
func WithClientOptions(opts ...option.ClientOption) ProviderOption {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// NewProvider returns a provider for projectID. An empty project falls back to GOOGLE_CLOUD_PROJECT and
// an unset emulator host to FIRESTORE_EMULATOR_HOST.
func NewProvider(projectID string, opts ...ProviderOption) *Provider {
	p := &Provider{projectID: strings.TrimSpace(projectID)}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.projectID == "" {
		p.projectID = strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_PROJECT"))
	}
	if p.emulatorHost == "" {
		p.emulatorHost = strings.TrimSpace(os.Getenv("FIRESTORE_EMULATOR_HOST"))
	}
	return p
}

// Client returns the shared client, dialling it if needed. A failed dial is retried by the next call.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrProviderClosed
	case p.client != nil:
		return p.client, nil
	case p.projectID == "":
		return nil, errProjectRequired
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	opts := append([]option.ClientOption(nil), p.clientOpts...)
	if p.emulatorHost != "" {
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(p.emulatorHost),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	client, err := firestore.NewClient(ctx, p.projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}
	p.client = client
	return client, nil
}

// Close releases the client. It is safe to call more than once.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
