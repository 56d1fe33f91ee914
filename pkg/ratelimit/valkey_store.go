package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AzielCF/wa-gateway/infrastructure/valkey"
)

// entryTTL outlives the day window, after which an entry is equivalent to
// a fresh one anyway.
const entryTTL = DayWindow + time.Hour

// ValkeyStore keeps entries in Valkey so counters survive a restart.
type ValkeyStore struct {
	client *valkey.Client
	prefix string
}

func NewValkeyStore(client *valkey.Client) *ValkeyStore {
	return &ValkeyStore{
		client: client,
		prefix: client.Key("ratelimit") + ":",
	}
}

func (s *ValkeyStore) fullKey(key string) string {
	return s.prefix + key
}

func (s *ValkeyStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, ok, err := s.client.Get(ctx, s.fullKey(key))
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get rate limit entry from valkey: %w", err)
	}
	if !ok {
		return Entry{}, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("failed to unmarshal rate limit entry: %w", err)
	}
	return entry, true, nil
}

func (s *ValkeyStore) Put(ctx context.Context, key string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal rate limit entry: %w", err)
	}
	if err := s.client.SetWithTTL(ctx, s.fullKey(key), data, entryTTL); err != nil {
		return fmt.Errorf("failed to save rate limit entry to valkey: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	return s.client.Delete(ctx, s.fullKey(key))
}
