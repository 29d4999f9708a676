package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/jeancarlo3213/ferrefactura/internal/draft"
)

// ErrNotFound is returned when no draft exists for the given id, either
// because it was never created or its TTL expired.
var ErrNotFound = errors.New("draftstore: draft not found")

const keyPrefix = "draft:"

// Store persists invoice drafts as JSON documents in Redis. Every save
// refreshes the TTL so an active checkout session never expires mid-flow.
type Store struct {
	R   *redis.Client
	TTL time.Duration
}

// New constructs a store with the given TTL. A non-positive TTL defaults to
// twelve hours, roughly one business day.
func New(r *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{R: r, TTL: ttl}
}

func key(id string) string { return keyPrefix + id }

// Save writes the draft and refreshes its TTL.
func (s *Store) Save(ctx context.Context, d *draft.Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("draftstore: encode draft %s: %w", d.ID, err)
	}
	if err := s.R.Set(ctx, key(d.ID), data, s.TTL).Err(); err != nil {
		return fmt.Errorf("draftstore: save draft %s: %w", d.ID, err)
	}
	return nil
}

// Get loads a draft by id.
func (s *Store) Get(ctx context.Context, id string) (*draft.Draft, error) {
	data, err := s.R.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("draftstore: load draft %s: %w", id, err)
	}
	var d draft.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("draftstore: decode draft %s: %w", id, err)
	}
	return &d, nil
}

// Delete removes the draft. Deleting an absent draft is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.R.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("draftstore: delete draft %s: %w", id, err)
	}
	return nil
}
