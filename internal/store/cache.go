package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
)

// sourceCacheTTL bounds how long a cached get_source result survives. The
// read it caches is a pure function of immutable post-persist_run state,
// so correctness never depends on this value;
// it only bounds memory held by runs nobody reads again.
const sourceCacheTTL = 10 * time.Minute

// CachingStore decorates a Store with a Redis-backed cache for get_source,
// the one read operation named explicitly as an ideal caching candidate in
// SPEC_FULL's supplemented features (a bounded upward walk, pure given
// immutable state). Every other operation passes through unchanged.
type CachingStore struct {
	delegate Store
	client   *redis.Client
	sink     *telemetry.Sink
}

// NewCachingStore wraps delegate with a Redis cache for GetSource results.
func NewCachingStore(delegate Store, client *redis.Client, sink *telemetry.Sink) *CachingStore {
	return &CachingStore{delegate: delegate, client: client, sink: sink}
}

func sourceCacheKey(runID, pageURL string) string {
	return fmt.Sprintf("webanalyzer:source:%s:%s", runID, pageURL)
}

func runKeysSetName(runID string) string {
	return fmt.Sprintf("webanalyzer:source-keys:%s", runID)
}

func (c *CachingStore) PersistRun(ctx context.Context, run model.Run, seedURL string, pages []model.PageRecord, edges []model.EdgeRecord, maps model.Maps, fetchedBodies map[string][]byte) failure.ClassifiedError {
	// A fresh persist_run invalidates any cached reads left over from a
	// prior write under the same run id.
	if err := c.invalidateRun(ctx, run.RunID); err != nil {
		c.sink.StoreWrite(run.RunID, "cache_invalidate", err)
	}
	return c.delegate.PersistRun(ctx, run, seedURL, pages, edges, maps, fetchedBodies)
}

func (c *CachingStore) GetRun(ctx context.Context, runID string) (model.RunBundle, failure.ClassifiedError) {
	return c.delegate.GetRun(ctx, runID)
}

func (c *CachingStore) GetParentChild(ctx context.Context, runID string) (model.Maps, failure.ClassifiedError) {
	return c.delegate.GetParentChild(ctx, runID)
}

func (c *CachingStore) DeleteRun(ctx context.Context, runID string) failure.ClassifiedError {
	if err := c.invalidateRun(ctx, runID); err != nil {
		c.sink.StoreWrite(runID, "cache_invalidate", err)
	}
	return c.delegate.DeleteRun(ctx, runID)
}

func (c *CachingStore) GetSource(ctx context.Context, runID, pageURL string, maxCrawlDepth int) (model.SourceResult, failure.ClassifiedError) {
	key := sourceCacheKey(runID, pageURL)

	if cached, ok := c.readCache(ctx, key); ok {
		return cached, nil
	}

	result, err := c.delegate.GetSource(ctx, runID, pageURL, maxCrawlDepth)
	if err != nil {
		return result, err
	}

	c.writeCache(ctx, runID, key, result)
	return result, nil
}

func (c *CachingStore) readCache(ctx context.Context, key string) (model.SourceResult, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return model.SourceResult{}, false
	}
	var result model.SourceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return model.SourceResult{}, false
	}
	return result, true
}

func (c *CachingStore) writeCache(ctx context.Context, runID, key string, result model.SourceResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, sourceCacheTTL).Err(); err != nil {
		c.sink.StoreWrite(runID, "cache_write", err)
		return
	}
	c.client.SAdd(ctx, runKeysSetName(runID), key)
	c.client.Expire(ctx, runKeysSetName(runID), sourceCacheTTL)
}

func (c *CachingStore) invalidateRun(ctx context.Context, runID string) error {
	setName := runKeysSetName(runID)
	keys, err := c.client.SMembers(ctx, setName).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return c.client.Del(ctx, setName).Err()
}
