package natsclient

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/virtual-origami/pyrobomogen/errors"
)

// KVOptions configures a JetStream key-value bucket.
type KVOptions struct {
	Description string
	TTL         time.Duration
	Timeout     time.Duration
}

// KVStore wraps a JetStream key-value bucket. The generator uses one
// bucket to snapshot static arm geometry so downstream consumers can
// resolve link lengths without parsing every telemetry sample.
type KVStore struct {
	kv      jetstream.KeyValue
	bucket  string
	timeout time.Duration
}

// EnsureKVBucket creates the named bucket if it does not exist and
// returns a store bound to it. Requires a connected client with
// JetStream enabled on the server.
func (c *Client) EnsureKVBucket(ctx context.Context, bucket string, opts KVOptions) (*KVStore, error) {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()

	if js == nil {
		return nil, errors.WrapTransient(ErrNotConnected, "Client", "EnsureKVBucket", "jetstream unavailable")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	createCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	kv, err := js.CreateOrUpdateKeyValue(createCtx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: opts.Description,
		TTL:         opts.TTL,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "EnsureKVBucket",
			fmt.Sprintf("create bucket %q", bucket))
	}

	return &KVStore{kv: kv, bucket: bucket, timeout: timeout}, nil
}

// Bucket returns the bucket name.
func (s *KVStore) Bucket() string {
	return s.bucket
}

// Put stores a value under key, overwriting any previous revision.
func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.kv.Put(opCtx, key, value); err != nil {
		return errors.WrapTransient(err, "KVStore", "Put", fmt.Sprintf("key %q", key))
	}
	return nil
}

// Get retrieves the value stored under key.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entry, err := s.kv.Get(opCtx, key)
	if err != nil {
		return nil, errors.WrapTransient(err, "KVStore", "Get", fmt.Sprintf("key %q", key))
	}
	return entry.Value(), nil
}

// Delete removes the value stored under key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.kv.Delete(opCtx, key); err != nil {
		return errors.WrapTransient(err, "KVStore", "Delete", fmt.Sprintf("key %q", key))
	}
	return nil
}
