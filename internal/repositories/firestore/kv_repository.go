package firestore

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	pfirestore "github.com/areebabashir/intrnecommerceproj1/internal/platform/firestore"
	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

const defaultKVCollection = "storefront_kv"

type kvDocument struct {
	Key       string    `firestore:"key"`
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// KeyValueRepository persists session blobs as documents of one collection. The key is kept in the
// document body; the document id is the path-escaped key.
type KeyValueRepository struct {
	provider   *pfirestore.Provider
	collection string
	now        func() time.Time
}

var _ repositories.KeyValueRepository = (*KeyValueRepository)(nil)

// NewKeyValueRepository returns a repository over collection, storefront_kv when empty.
func NewKeyValueRepository(provider *pfirestore.Provider, collection string, clock func() time.Time) (*KeyValueRepository, error) {
	if provider == nil {
		return nil, errors.New("kv repository requires firestore provider")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = defaultKVCollection
	}
	if clock == nil {
		clock = time.Now
	}
	return &KeyValueRepository{provider: provider, collection: collection, now: clock}, nil
}

func (r *KeyValueRepository) doc(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, repositories.NewStoreError(r.collection+".client", repositories.ErrorKindUnavailable, err)
	}
	return client.Collection(r.collection).Doc(documentID(key)), nil
}

func (r *KeyValueRepository) Get(ctx context.Context, key string) ([]byte, error) {
	ref, err := r.doc(ctx, key)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, pfirestore.WrapError(r.collection+".get", err)
	}
	var doc kvDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, repositories.NewStoreError(r.collection+".decode", repositories.ErrorKindUnknown, err)
	}
	return []byte(doc.Value), nil
}

func (r *KeyValueRepository) Put(ctx context.Context, key string, value []byte) error {
	ref, err := r.doc(ctx, key)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, kvDocument{Key: key, Value: string(value), UpdatedAt: r.now().UTC()})
	return pfirestore.WrapError(r.collection+".set", err)
}

// Delete removes the document. Deleting a missing key is not an error.
func (r *KeyValueRepository) Delete(ctx context.Context, key string) error {
	ref, err := r.doc(ctx, key)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx)
	return pfirestore.WrapError(r.collection+".delete", err)
}

// Ping reads at most one document to prove the collection is reachable.
func (r *KeyValueRepository) Ping(ctx context.Context) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	iter := client.Collection(r.collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return pfirestore.WrapError(r.collection+".ping", err)
	}
	return nil
}

// Close releases the shared provider.
func (r *KeyValueRepository) Close() error {
	return r.provider.Close()
}

// documentID escapes "/" which Firestore treats as a path separator.
func documentID(key string) string {
	return url.PathEscape(key)
}
