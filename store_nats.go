package flight

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const natsEnvelopeMarker = "flight-v1"

var errNATSUnavailable = errors.New("flight: nats key-value unavailable")

// NATSKeyValue captures the subset of nats.KeyValue used by the store.
type NATSKeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
	Purge(key string, opts ...nats.DeleteOpt) error
	ListKeys(opts ...nats.WatchOpt) (nats.KeyLister, error)
}

// natsStore keeps entries in a JetStream key-value bucket. Unless the bucket
// enforces its own MaxAge, each value is wrapped in a JSON envelope carrying
// its expiry.
type natsStore struct {
	kv         NATSKeyValue
	defaultTTL time.Duration
	prefix     string
	bucketTTL  bool
}

type natsEnvelope struct {
	Marker    string `json:"m"`
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"ea"`
}

func newNATSStore(kv NATSKeyValue, defaultTTL time.Duration, prefix string, bucketTTL bool) Store {
	if defaultTTL <= 0 {
		defaultTTL = defaultStoreTTL
	}
	if prefix == "" {
		prefix = defaultStorePrefix
	}
	return &natsStore{
		kv:         kv,
		defaultTTL: defaultTTL,
		prefix:     prefix,
		bucketTTL:  bucketTTL,
	}
}

func (s *natsStore) Driver() Driver { return DriverNATS }

func (s *natsStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.kv == nil {
		return nil, false, errNATSUnavailable
	}
	storeKey := s.storeKey(key)
	entry, err := s.kv.Get(storeKey)
	if isNATSMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if entry.Operation() == nats.KeyValueDelete || entry.Operation() == nats.KeyValuePurge {
		return nil, false, nil
	}
	if s.bucketTTL {
		return cloneBytes(entry.Value()), true, nil
	}
	envelope, wrapped, err := decodeNATSEnvelope(entry.Value())
	if err != nil {
		return nil, false, err
	}
	if !wrapped {
		return cloneBytes(entry.Value()), true, nil
	}
	if envelope.ExpiresAt > 0 && time.Now().UnixMilli() > envelope.ExpiresAt {
		_ = s.kv.Purge(storeKey)
		return nil, false, nil
	}
	return cloneBytes(envelope.Value), true, nil
}

func (s *natsStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	body := cloneBytes(value)
	if !s.bucketTTL {
		var err error
		if body, err = s.encodeEnvelope(value, ttl); err != nil {
			return err
		}
	}
	_, err := s.kv.Put(s.storeKey(key), body)
	return err
}

func (s *natsStore) Delete(_ context.Context, key string) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	err := s.kv.Delete(s.storeKey(key))
	if isNATSMiss(err) {
		return nil
	}
	return err
}

// Flush purges only keys under this store's prefix.
func (s *natsStore) Flush(_ context.Context) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	lister, err := s.kv.ListKeys(nats.IgnoreDeletes())
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil
		}
		return err
	}
	defer func() { _ = lister.Stop() }()

	scopePrefix := s.scopePrefix()
	for key := range lister.Keys() {
		if !strings.HasPrefix(key, scopePrefix) {
			continue
		}
		if err := s.kv.Purge(key); err != nil && !isNATSMiss(err) {
			return err
		}
	}
	// A listing that fails partway closes Keys early; its cause arrives here.
	for err := range lister.Error() {
		if err != nil {
			return fmt.Errorf("list nats keys: %w", err)
		}
	}
	return nil
}

// storeKey base64-encodes key so arbitrary strings are valid NATS subjects.
func (s *natsStore) storeKey(key string) string {
	return s.scopePrefix() + encodeNATSKeyPart(key)
}

func (s *natsStore) scopePrefix() string {
	return "p." + encodeNATSKeyPart(s.prefix) + ".k."
}

func (s *natsStore) encodeEnvelope(value []byte, ttl time.Duration) ([]byte, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	body, err := json.Marshal(natsEnvelope{
		Marker:    natsEnvelopeMarker,
		Value:     cloneBytes(value),
		ExpiresAt: time.Now().Add(ttl).UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal nats envelope: %w", err)
	}
	return body, nil
}

func decodeNATSEnvelope(body []byte) (natsEnvelope, bool, error) {
	var envelope natsEnvelope
	if len(body) == 0 || body[0] != '{' {
		return envelope, false, nil
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return natsEnvelope{}, false, fmt.Errorf("decode nats envelope: %w", err)
	}
	if envelope.Marker != natsEnvelopeMarker {
		return natsEnvelope{}, false, nil
	}
	return envelope, true, nil
}

func isNATSMiss(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}

func encodeNATSKeyPart(part string) string {
	if part == "" {
		return "_"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(part))
}
