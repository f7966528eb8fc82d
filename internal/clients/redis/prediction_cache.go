package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/stockcast/stockcast-backend/internal/platform/envutil"
	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/repos"
	"github.com/stockcast/stockcast-backend/internal/types"
)

const (
	keyPrefix   = "stockcast:pred:"
	indexPrefix = "stockcast:predidx:"
	productsKey = "stockcast:pred_products"
	dateLayout  = "2006-01-02"
)

// PredictionCache is the Redis-backed repos.PredictionCache. One JSON row
// per (product, date) key plus a per-product sorted set of dates so range
// queries stay ordered.
type PredictionCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewPredictionCache(baseLog *logger.Logger) (*PredictionCache, error) {
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &PredictionCache{
		log: baseLog.With("service", "RedisPredictionCache"),
		rdb: rdb,
	}, nil
}

func (c *PredictionCache) Close() error { return c.rdb.Close() }

func rowKey(productID string, date time.Time) string {
	return keyPrefix + productID + ":" + date.UTC().Format(dateLayout)
}

func indexKey(productID string) string { return indexPrefix + productID }

func dateScore(date time.Time) float64 {
	return float64(date.UTC().Unix() / 86400)
}

func (c *PredictionCache) Upsert(ctx context.Context, row *types.StockPrediction) error {
	if row == nil {
		return nil
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, rowKey(row.ProductID, row.PredictionDate), raw, 0)
	pipe.ZAdd(ctx, indexKey(row.ProductID), goredis.Z{
		Score:  dateScore(row.PredictionDate),
		Member: row.PredictionDate.UTC().Format(dateLayout),
	})
	pipe.SAdd(ctx, productsKey, row.ProductID)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *PredictionCache) UpsertMany(ctx context.Context, rows []*types.StockPrediction) (int, error) {
	count := 0
	for _, row := range rows {
		if err := c.Upsert(ctx, row); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (c *PredictionCache) Get(ctx context.Context, productID string, date time.Time) (*types.StockPrediction, error) {
	raw, err := c.rdb.Get(ctx, rowKey(productID, date)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var row types.StockPrediction
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (c *PredictionCache) GetRange(ctx context.Context, productID string, start, end time.Time) ([]*types.StockPrediction, error) {
	dates, err := c.rdb.ZRangeByScore(ctx, indexKey(productID), &goredis.ZRangeBy{
		Min: fmt.Sprintf("%f", dateScore(start)),
		Max: fmt.Sprintf("%f", dateScore(end)),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, nil
	}

	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = keyPrefix + productID + ":" + d
	}
	raws, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*types.StockPrediction, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var row types.StockPrediction
		if err := json.Unmarshal([]byte(s), &row); err != nil {
			c.log.Warn("Skipping undecodable cached prediction", "product_id", productID, "error", err)
			continue
		}
		out = append(out, &row)
	}
	return out, nil
}

func (c *PredictionCache) InvalidateProduct(ctx context.Context, productID string) (int64, error) {
	dates, err := c.rdb.ZRange(ctx, indexKey(productID), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(dates)+1)
	for _, d := range dates {
		keys = append(keys, keyPrefix+productID+":"+d)
	}
	keys = append(keys, indexKey(productID))

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, productsKey, productID)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int64(len(dates)), nil
}

func (c *PredictionCache) InvalidateAll(ctx context.Context) (int64, error) {
	products, err := c.rdb.SMembers(ctx, productsKey).Result()
	if err != nil {
		return 0, err
	}
	total := int64(0)
	for _, pid := range products {
		n, err := c.InvalidateProduct(ctx, pid)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (c *PredictionCache) Stats(ctx context.Context, productID string) (repos.CacheStats, error) {
	out := repos.CacheStats{}

	var products []string
	if productID != "" {
		products = []string{productID}
	} else {
		all, err := c.rdb.SMembers(ctx, productsKey).Result()
		if err != nil {
			return out, err
		}
		products = all
	}

	var minDate, maxDate *time.Time
	for _, pid := range products {
		n, err := c.rdb.ZCard(ctx, indexKey(pid)).Result()
		if err != nil {
			return out, err
		}
		if n == 0 {
			continue
		}
		out.TotalPredictions += n
		out.ProductCount++

		first, err := c.rdb.ZRange(ctx, indexKey(pid), 0, 0).Result()
		if err != nil {
			return out, err
		}
		last, err := c.rdb.ZRange(ctx, indexKey(pid), -1, -1).Result()
		if err != nil {
			return out, err
		}
		if len(first) > 0 {
			if d, err := time.Parse(dateLayout, strings.TrimSpace(first[0])); err == nil {
				if minDate == nil || d.Before(*minDate) {
					minDate = &d
				}
			}
		}
		if len(last) > 0 {
			if d, err := time.Parse(dateLayout, strings.TrimSpace(last[0])); err == nil {
				if maxDate == nil || d.After(*maxDate) {
					maxDate = &d
				}
			}
		}
	}
	out.EarliestDate = minDate
	out.LatestDate = maxDate
	return out, nil
}
