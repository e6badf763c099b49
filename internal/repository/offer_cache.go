package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss ключа нет в кэше
var ErrCacheMiss = errors.New("cache miss")

// tombstoneTTL сколько живёт отметка об инвалидации
const tombstoneTTL = time.Minute

// OfferCache кэш офферов для редиректа, чтобы не ходить в PostgreSQL на каждый клик.
// Запись версионирована по updated_at оффера: более старая версия не
// перезаписывает более новую, в том числе отметку об инвалидации.
type OfferCache interface {
	Get(ctx context.Context, offerID string) (*models.Offer, error)
	Set(ctx context.Context, offer *models.Offer, ttl time.Duration) error
	// Invalidate убирает оффер из кэша и запрещает запись версий старше version
	Invalidate(ctx context.Context, offerID string, version time.Time) error
}

// Ключ это hash с полями version (микросекунды) и data (JSON оффера)
var setOfferScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('DEL', KEYS[1])
if ARGV[2] == '' then
	redis.call('HSET', KEYS[1], 'version', ARGV[1])
else
	redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
end
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

type offerCache struct {
	redis *RedisDB
}

func NewOfferCache(redis *RedisDB) OfferCache {
	return &offerCache{redis: redis}
}

func (r *offerCache) Get(ctx context.Context, offerID string) (*models.Offer, error) {
	data, err := r.redis.Client.HGet(ctx, r.key(offerID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var offer models.Offer
	if err := json.Unmarshal(data, &offer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal offer: %w", err)
	}

	return &offer, nil
}

func (r *offerCache) Set(ctx context.Context, offer *models.Offer, ttl time.Duration) error {
	data, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("failed to marshal offer: %w", err)
	}

	return r.write(ctx, offer.ID, offer.UpdatedAt, string(data), ttl)
}

func (r *offerCache) Invalidate(ctx context.Context, offerID string, version time.Time) error {
	return r.write(ctx, offerID, version, "", tombstoneTTL)
}

func (r *offerCache) write(ctx context.Context, offerID string, version time.Time, data string, ttl time.Duration) error {
	keys := []string{r.key(offerID)}
	return setOfferScript.Run(ctx, r.redis.Client, keys, version.UnixMicro(), data, ttl.Milliseconds()).Err()
}

func (r *offerCache) key(offerID string) string {
	return "offer:" + offerID
}
