package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/clients"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// rankedItemModel — элемент выдачи в кэше.
type rankedItemModel struct {
	ProductID int64   `json:"product_id"`
	Score     float64 `json:"score"`
}

// RankingCache кэширует готовые выдачи. Ключи строит use case и включает в них версии
// снимков моделей, поэтому после переобучения старые записи просто перестают запрашиваться
// и истекают по TTL.
type RankingCache struct {
	client *clients.RedisClient
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewRankingCache(client *clients.RedisClient, cfg *cfg.RedisCfg, logger logger.Logger) *RankingCache {
	return &RankingCache{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Get возвращает закэшированную выдачу или e.ErrCacheMiss.
func (c *RankingCache) Get(ctx context.Context, key string) ([]domain.ScoredProduct, error) {
	data, err := c.client.Client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, e.ErrCacheMiss
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var models []rankedItemModel
	if err := json.Unmarshal(data, &models); err != nil {
		c.logger.Warnf("Redis unmarshal failed, dropping key %s: %v", key, err)
		if err := c.client.Client.Del(ctx, c.key(key)).Err(); err != nil {
			c.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
		}
		return nil, e.ErrCacheMiss
	}

	items := make([]domain.ScoredProduct, len(models))
	for i, m := range models {
		items[i] = domain.ScoredProduct{ProductID: m.ProductID, Score: m.Score}
	}

	return items, nil
}

// Set сохраняет выдачу с TTL из конфигурации.
func (c *RankingCache) Set(ctx context.Context, key string, items []domain.ScoredProduct) error {
	models := make([]rankedItemModel, len(items))
	for i, it := range items {
		models[i] = rankedItemModel{ProductID: it.ProductID, Score: it.Score}
	}

	data, err := json.Marshal(models)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal ranking: %w", whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, c.key(key), data, c.cfg.RankingTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (c *RankingCache) key(key string) string {
	return c.cfg.KeyPrefix + key
}
