package repos

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/types"
)

// CacheStats summarizes the cache contents, globally or for one product.
type CacheStats struct {
	TotalPredictions int64      `json:"total_predictions"`
	ProductCount     int64      `json:"products_count"`
	EarliestDate     *time.Time `json:"earliest_date,omitempty"`
	LatestDate       *time.Time `json:"latest_date,omitempty"`
}

// PredictionCache stores forecasts keyed by (product_id, prediction_date).
// Writes are last-write-wins upserts. Implementations: Postgres (this
// package) and Redis (internal/clients/redis).
type PredictionCache interface {
	Upsert(ctx context.Context, row *types.StockPrediction) error
	UpsertMany(ctx context.Context, rows []*types.StockPrediction) (int, error)
	Get(ctx context.Context, productID string, date time.Time) (*types.StockPrediction, error)
	GetRange(ctx context.Context, productID string, start, end time.Time) ([]*types.StockPrediction, error)
	InvalidateProduct(ctx context.Context, productID string) (int64, error)
	InvalidateAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context, productID string) (CacheStats, error)
}

type predictionCacheRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPredictionCacheRepo(db *gorm.DB, baseLog *logger.Logger) PredictionCache {
	return &predictionCacheRepo{db: db, log: baseLog.With("repo", "PredictionCacheRepo")}
}

// upsertColumns are overwritten when a row for (product_id, prediction_date)
// already exists.
var upsertColumns = []string{
	"predicted_stock",
	"quantity_on_hand",
	"quantity_reserved",
	"reorder_point",
	"optimal_stock_level",
	"average_daily_usage",
	"stock_status",
	"day_of_week",
	"is_weekend",
	"category",
	"created_at",
}

func (r *predictionCacheRepo) Upsert(ctx context.Context, row *types.StockPrediction) error {
	if row == nil {
		return nil
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "prediction_date"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(row).Error
}

func (r *predictionCacheRepo) UpsertMany(ctx context.Context, rows []*types.StockPrediction) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "prediction_date"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		CreateInBatches(rows, 200).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *predictionCacheRepo) Get(ctx context.Context, productID string, date time.Time) (*types.StockPrediction, error) {
	var row types.StockPrediction
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND prediction_date = ?", productID, date).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ProductID == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *predictionCacheRepo) GetRange(ctx context.Context, productID string, start, end time.Time) ([]*types.StockPrediction, error) {
	var rows []*types.StockPrediction
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND prediction_date >= ? AND prediction_date <= ?", productID, start, end).
		Order("prediction_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *predictionCacheRepo) InvalidateProduct(ctx context.Context, productID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&types.StockPrediction{})
	if res.Error != nil {
		return 0, res.Error
	}
	r.log.Info("Invalidated cached predictions", "product_id", productID, "deleted", res.RowsAffected)
	return res.RowsAffected, nil
}

func (r *predictionCacheRepo) InvalidateAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.StockPrediction{})
	if res.Error != nil {
		return 0, res.Error
	}
	r.log.Info("Invalidated entire prediction cache", "deleted", res.RowsAffected)
	return res.RowsAffected, nil
}

func (r *predictionCacheRepo) Stats(ctx context.Context, productID string) (CacheStats, error) {
	out := CacheStats{}
	q := r.db.WithContext(ctx).Model(&types.StockPrediction{})
	if productID != "" {
		q = q.Where("product_id = ?", productID)
	}
	if err := q.Count(&out.TotalPredictions).Error; err != nil {
		return out, err
	}
	if out.TotalPredictions == 0 {
		return out, nil
	}

	countQ := r.db.WithContext(ctx).Model(&types.StockPrediction{})
	if productID != "" {
		countQ = countQ.Where("product_id = ?", productID)
	}
	if err := countQ.Distinct("product_id").Count(&out.ProductCount).Error; err != nil {
		return out, err
	}

	boundary := func(order string) (*time.Time, error) {
		var row types.StockPrediction
		q := r.db.WithContext(ctx).Model(&types.StockPrediction{})
		if productID != "" {
			q = q.Where("product_id = ?", productID)
		}
		if err := q.Order("prediction_date " + order).Limit(1).Find(&row).Error; err != nil {
			return nil, err
		}
		if row.ProductID == "" {
			return nil, nil
		}
		d := row.PredictionDate
		return &d, nil
	}
	var err error
	if out.EarliestDate, err = boundary("ASC"); err != nil {
		return out, err
	}
	if out.LatestDate, err = boundary("DESC"); err != nil {
		return out, err
	}
	return out, nil
}
