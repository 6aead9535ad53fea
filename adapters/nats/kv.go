package nats

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/getdevflow/core-sub003/ports/kv"
)

const defaultBucket = "devflow_lookup"

type KvConfig struct {
	Connect Connector
	Bucket  string
	// Memory keeps the bucket in memory instead of on disk.
	Memory bool
}

// KvStore is a kv.Store on a JetStream key value bucket. Keys are base64url
// encoded since bucket keys only allow a small alphabet.
type KvStore struct {
	kv      jetstream.KeyValue
	closeNc closeFunc
	now     func() time.Time
}

// kvEntry wraps values that carry an expiry.
type kvEntry struct {
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

func NewKvStore(ctx context.Context, cfg KvConfig) (*KvStore, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeNc, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNc()
		return nil, err
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = defaultBucket
	}
	storage := jetstream.FileStorage
	if cfg.Memory {
		storage = jetstream.MemoryStorage
	}

	b, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		Storage: storage,
		History: 1,
	})
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return &KvStore{kv: b, closeNc: closeNc, now: time.Now}, nil
}

func (k *KvStore) Close() error {
	k.closeNc()
	return nil
}

func encodeKey(key string) string { return base64.RawURLEncoding.EncodeToString([]byte(key)) }

func (k *KvStore) Put(ctx context.Context, key string, value []byte, opts kv.PutOptions) error {
	e := kvEntry{Value: value}
	if deadline := opts.Deadline(k.now()); !deadline.IsZero() {
		e.ExpiresAt = deadline.UnixMilli()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := k.kv.Put(ctx, encodeKey(key), data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (k *KvStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := k.kv.Get(ctx, encodeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var e kvEntry
	if err := json.Unmarshal(v.Value(), &e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if e.ExpiresAt > 0 && kv.Expired(time.UnixMilli(e.ExpiresAt), k.now()) {
		_ = k.Delete(ctx, key)
		return nil, kv.ErrNotFound
	}
	return e.Value, nil
}

func (k *KvStore) Delete(ctx context.Context, key string) error {
	if err := k.kv.Delete(ctx, encodeKey(key)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

var _ kv.Store = (*KvStore)(nil)
