package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markdave123-py/lessontutor/internal/core"
	"github.com/markdave123-py/lessontutor/internal/core/logger"
	"github.com/markdave123-py/lessontutor/internal/models"
)

const (
	redisKeyPrefix = "tutor:text:"
	redisTTL       = 24 * time.Hour
)

// RedisCache is a read-through, write-through tier in front of another TextCache.
// Redis failures are logged and never fail the lookup.
type RedisCache struct {
	rdb  *redis.Client
	next core.TextCache
	log  *logger.Logger
}

var _ core.TextCache = (*RedisCache)(nil)

func NewRedisCache(rdb *redis.Client, next core.TextCache, log *logger.Logger) *RedisCache {
	return &RedisCache{rdb: rdb, next: next, log: log}
}

func (c *RedisCache) Get(ctx context.Context, documentID string) (*models.CachedText, error) {
	raw, err := c.rdb.Get(ctx, redisKeyPrefix+documentID).Bytes()
	switch {
	case err == nil:
		var e models.CachedText
		if jerr := json.Unmarshal(raw, &e); jerr == nil {
			return &e, nil
		}
		c.log.Warn("redis text cache: undecodable entry", "doc_id", documentID)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("redis text cache: get failed", "doc_id", documentID, "error", err)
	}

	e, err := c.next.Get(ctx, documentID)
	if err != nil || e == nil {
		return e, err
	}
	c.set(ctx, e)
	return e, nil
}

func (c *RedisCache) Put(ctx context.Context, entry *models.CachedText) error {
	if err := c.next.Put(ctx, entry); err != nil {
		return err
	}
	cp := *entry
	cp.Text = Truncate(cp.Text, MaxStoredTextChars)
	c.set(ctx, &cp)
	return nil
}

func (c *RedisCache) set(ctx context.Context, e *models.CachedText) {
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+e.ID, raw, redisTTL).Err(); err != nil {
		c.log.Warn("redis text cache: set failed", "doc_id", e.ID, "error", err)
	}
}
