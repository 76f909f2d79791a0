// Package cache provides the Redis-backed ticket cache. Values are JSON
// snapshots of one ticket or the full ticket list; get, set, and remove are
// each a single atomic round trip. Entries carry no TTL; consistency comes
// from invalidation on writes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"ticketd/internal/application/ticket/dto"
)

// allSuffix is the fixed key suffix for the full-list entry.
const allSuffix = "all"

// RedisTicketCache stores ticket snapshots in Redis under a namespace
// prefix.
type RedisTicketCache struct {
	client *redis.Client
	prefix string // key prefix, e.g. "ticket:"
}

func NewRedisTicketCache(client *redis.Client, prefix string) *RedisTicketCache {
	return &RedisTicketCache{
		client: client,
		prefix: prefix,
	}
}

// ticketKey derives the per-ticket cache key: the namespace prefix combined
// with a SHA-256 digest of the decimal id. Deterministic and collision-free
// in practice for all valid identities.
func (c *RedisTicketCache) ticketKey(id uint) string {
	sum := sha256.Sum256([]byte(strconv.FormatUint(uint64(id), 10)))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *RedisTicketCache) allKey() string {
	return c.prefix + allSuffix
}

func (c *RedisTicketCache) GetTicket(ctx context.Context, id uint) (*dto.TicketDTO, bool, error) {
	data, err := c.client.Get(ctx, c.ticketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get ticket from cache: %w", err)
	}

	var t dto.TicketDTO
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached ticket: %w", err)
	}

	return &t, true, nil
}

func (c *RedisTicketCache) SetTicket(ctx context.Context, t dto.TicketDTO) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	if err := c.client.Set(ctx, c.ticketKey(t.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store ticket in cache: %w", err)
	}

	return nil
}

func (c *RedisTicketCache) RemoveTicket(ctx context.Context, id uint) error {
	if err := c.client.Del(ctx, c.ticketKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove ticket from cache: %w", err)
	}
	return nil
}

func (c *RedisTicketCache) GetAll(ctx context.Context) ([]dto.TicketDTO, bool, error) {
	data, err := c.client.Get(ctx, c.allKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get ticket list from cache: %w", err)
	}

	var tickets []dto.TicketDTO
	if err := json.Unmarshal(data, &tickets); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached ticket list: %w", err)
	}

	return tickets, true, nil
}

func (c *RedisTicketCache) SetAll(ctx context.Context, tickets []dto.TicketDTO) error {
	data, err := json.Marshal(tickets)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket list: %w", err)
	}

	if err := c.client.Set(ctx, c.allKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store ticket list in cache: %w", err)
	}

	return nil
}

func (c *RedisTicketCache) RemoveAll(ctx context.Context) error {
	if err := c.client.Del(ctx, c.allKey()).Err(); err != nil {
		return fmt.Errorf("failed to remove ticket list from cache: %w", err)
	}
	return nil
}
