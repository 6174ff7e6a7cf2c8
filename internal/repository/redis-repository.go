package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"deafbot/internal/domain"

	"github.com/redis/go-redis/v9"
)

const locationCacheTTL = 30 * 24 * time.Hour

// LocationCache keeps geocoder answers keyed by the exact text the user sent.
type LocationCache struct {
	client *redis.Client
}

func NewLocationCache(client *redis.Client) *LocationCache {
	return &LocationCache{client: client}
}

func locationKey(input string) string {
	return "location_cache:" + input
}

func (r *LocationCache) GetLocation(ctx context.Context, input string) (*domain.Location, error) {
	data, err := r.client.Get(ctx, locationKey(input)).Result()
	if err == redis.Nil {
		return nil, nil // Key doesn't exist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location from redis: %w", err)
	}

	var loc domain.Location
	if err := json.Unmarshal([]byte(data), &loc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal location: %w", err)
	}
	return &loc, nil
}

func (r *LocationCache) SaveLocation(ctx context.Context, input string, loc domain.Location) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}

	if err := r.client.Set(ctx, locationKey(input), data, locationCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to save location to redis: %w", err)
	}
	return nil
}

// Health check method
func (r *LocationCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
