// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// subtree.go caches serialized subtrees and the forest in Valkey so repeated
// reads skip the recursive query. Any mutation can change several cached
// subtrees at once (the node, its parent and grandparent, before and after a
// move), so writers clear every entry instead of tracking dependencies.
//
// Entries are stamped with a generation. InvalidateAll bumps the generation
// with a single INCR, which hides every older entry at once, including ones
// a slow reader writes back after the bump.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"categorytree/internal/models"
)

const (
	// keyPrefix namespaces every key this cache writes.
	keyPrefix = "categorytree:"

	generationKey    = keyPrefix + "generation"
	subtreeKeyPrefix = keyPrefix + "subtree:"
	forestKeyPrefix  = keyPrefix + "forest:"

	// DefaultSubtreeTTL is how long a cached subtree lives.
	DefaultSubtreeTTL = time.Minute
)

// Generation identifies the cache epoch an entry belongs to. Readers take
// the generation before querying the database and write back under it.
type Generation int64

// SubtreeCache stores category subtrees in Valkey. Errors are logged and
// treated as misses so the database stays the source of truth.
type SubtreeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSubtreeCache creates a subtree cache backed by the given Valkey client.
func NewSubtreeCache(client *redis.Client, ttl time.Duration) *SubtreeCache {
	if ttl == 0 {
		ttl = DefaultSubtreeTTL
	}
	return &SubtreeCache{client: client, ttl: ttl}
}

// SubtreeKey returns the cache key for the subtree rooted at id.
func SubtreeKey(gen Generation, id int64) string {
	return subtreeKeyPrefix + strconv.FormatInt(int64(gen), 10) + ":" + strconv.FormatInt(id, 10)
}

func forestKey(gen Generation) string {
	return forestKeyPrefix + strconv.FormatInt(int64(gen), 10)
}

// Generation returns the current generation. ok is false when Valkey cannot
// be reached, in which case the caller should bypass the cache.
func (c *SubtreeCache) Generation(ctx context.Context) (gen Generation, ok bool) {
	n, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		slog.Warn("subtree cache generation error", "error", err)
		return 0, false
	}
	return Generation(n), true
}

// GetSubtree returns the subtree rooted at id cached under gen.
func (c *SubtreeCache) GetSubtree(ctx context.Context, gen Generation, id int64) (*models.Node, bool) {
	var node models.Node
	if !c.get(ctx, SubtreeKey(gen, id), &node) {
		return nil, false
	}
	return &node, true
}

// SetSubtree caches node under gen.
func (c *SubtreeCache) SetSubtree(ctx context.Context, gen Generation, node *models.Node) {
	c.set(ctx, SubtreeKey(gen, node.ID), node)
}

// GetForest returns the forest cached under gen.
func (c *SubtreeCache) GetForest(ctx context.Context, gen Generation) ([]models.Node, bool) {
	var roots []models.Node
	if !c.get(ctx, forestKey(gen), &roots) {
		return nil, false
	}
	return roots, true
}

// SetForest caches the forest under gen.
func (c *SubtreeCache) SetForest(ctx context.Context, gen Generation, roots []models.Node) {
	c.set(ctx, forestKey(gen), roots)
}

func (c *SubtreeCache) get(ctx context.Context, key string, dst any) bool {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		slog.Warn("subtree cache get error", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(val, dst); err != nil {
		slog.Warn("subtree cache decode error", "key", key, "error", err)
		return false
	}
	slog.Debug("subtree cache hit", "key", key)
	return true
}

func (c *SubtreeCache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("subtree cache encode error", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("subtree cache set error", "key", key, "error", err)
	}
}

// InvalidateAll moves the cache to a new generation, then deletes entries of
// older generations by scanning for the key prefixes. Entries the sweep
// misses are unreachable and expire with their TTL.
func (c *SubtreeCache) InvalidateAll(ctx context.Context) {
	gen, err := c.client.Incr(ctx, generationKey).Result()
	if err != nil {
		slog.Error("subtree cache generation bump failed", "error", err)
		return
	}

	current := Generation(gen)
	var deleted int
	for _, prefix := range []string{subtreeKeyPrefix, forestKeyPrefix} {
		deleted += c.sweep(ctx, prefix, current)
	}
	slog.Debug("subtree cache invalidated", "generation", gen, "deleted", deleted)
}

// sweep deletes keys under prefix that belong to a generation before current.
func (c *SubtreeCache) sweep(ctx context.Context, prefix string, current Generation) int {
	var cursor uint64
	var deleted int
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			slog.Warn("subtree cache scan error", "error", err)
			return deleted
		}

		stale := keys[:0]
		for _, key := range keys {
			if keyGeneration(key, prefix) < current {
				stale = append(stale, key)
			}
		}
		if len(stale) > 0 {
			if err := c.client.Del(ctx, stale...).Err(); err != nil {
				slog.Warn("subtree cache bulk delete error", "error", err)
			} else {
				deleted += len(stale)
			}
		}

		cursor = next
		if cursor == 0 {
			return deleted
		}
	}
}

// keyGeneration parses the generation out of a key written by this cache.
// Unparseable keys report the lowest generation so they are swept.
func keyGeneration(key, prefix string) Generation {
	genPart, _, _ := strings.Cut(strings.TrimPrefix(key, prefix), ":")
	n, err := strconv.ParseInt(genPart, 10, 64)
	if err != nil {
		return -1
	}
	return Generation(n)
}
