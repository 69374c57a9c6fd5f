package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"guard-backend/internal/model"
	"guard-backend/internal/wizard"
	"guard-backend/pkg/logging"
)

// cacheBackend is the subset of redis the cache needs.
type cacheBackend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisBackend struct {
	client *redis.Client
}

func (b redisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b redisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b redisBackend) Del(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

// CachedReportRepository is a read-through cache in front of another
// ReportRepository. Cache failures are logged and never fail the call.
//
// Entries are keyed by a per-report version token that every write replaces, so a
// read that raced a write can only fill an entry nobody looks up anymore.
type CachedReportRepository struct {
	next   ReportRepository
	cache  cacheBackend
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisClient opens a client from address, password and database number.
func NewRedisClient(addr, password string, database int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})
}

func NewCachedReportRepository(next ReportRepository, client *redis.Client, ttl time.Duration, logger logging.Logger) *CachedReportRepository {
	return newCachedReportRepository(next, redisBackend{client: client}, ttl, logger)
}

func newCachedReportRepository(next ReportRepository, cache cacheBackend, ttl time.Duration, logger logging.Logger) *CachedReportRepository {
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedReportRepository{next: next, cache: cache, ttl: ttl, logger: logger}
}

func entryKey(responseID, version string) string {
	if version == "" {
		return "report:" + responseID
	}
	return "report:" + responseID + "@" + version
}

func versionKey(responseID string) string {
	return "report:" + responseID + ":version"
}

func (c *CachedReportRepository) Create(ctx context.Context, r *wizard.Report) error {
	return c.next.Create(ctx, r)
}

func (c *CachedReportRepository) Get(ctx context.Context, responseID string) (*wizard.Report, error) {
	version, ok := c.version(ctx, responseID)
	if !ok {
		return c.next.Get(ctx, responseID)
	}
	key := entryKey(responseID, version)
	data, hit, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("report cache read %s: %v", key, err)
	}
	if hit {
		if r, err := decodeCached(data); err == nil {
			return r, nil
		}
		c.logger.Warn("report cache entry %s is corrupt, dropping", key)
		c.drop(ctx, key)
	}

	r, err := c.next.Get(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(r); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("report cache write %s: %v", key, err)
		}
	}
	return r, nil
}

func (c *CachedReportRepository) Update(ctx context.Context, responseID string, fn UpdateFunc) (*wizard.Report, error) {
	r, err := c.next.Update(ctx, responseID, fn)
	c.invalidate(ctx, responseID)
	return r, err
}

func (c *CachedReportRepository) SaveReceipt(ctx context.Context, receipt *model.Receipt) error {
	return c.next.SaveReceipt(ctx, receipt)
}

func (c *CachedReportRepository) GetReceipt(ctx context.Context, responseID string) (*model.Receipt, error) {
	return c.next.GetReceipt(ctx, responseID)
}

// version returns the current version token of a report, empty before its first
// write. ok is false when the cache could not be read.
func (c *CachedReportRepository) version(ctx context.Context, responseID string) (string, bool) {
	data, _, err := c.cache.Get(ctx, versionKey(responseID))
	if err != nil {
		c.logger.Warn("report cache version %s: %v", responseID, err)
		return "", false
	}
	return string(data), true
}

func (c *CachedReportRepository) invalidate(ctx context.Context, responseID string) {
	old, _ := c.version(ctx, responseID)
	// a version token must outlive every entry filled under it
	ttl := 2 * c.ttl
	if err := c.cache.Set(ctx, versionKey(responseID), []byte(uuid.NewString()), ttl); err != nil {
		c.logger.Warn("report cache version bump %s: %v", responseID, err)
	}
	c.drop(ctx, entryKey(responseID, old))
}

func (c *CachedReportRepository) drop(ctx context.Context, key string) {
	if err := c.cache.Del(ctx, key); err != nil {
		c.logger.Warn("report cache delete %s: %v", key, err)
	}
}

func decodeCached(data []byte) (*wizard.Report, error) {
	var r wizard.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	schema := wizard.DefaultSchema()
	for name, values := range r.Sections {
		r.Sections[name] = schema.Normalize(wizard.Step(name), values)
	}
	if r.Sections == nil {
		r.Sections = map[string]wizard.Values{}
	}
	return &r, nil
}
