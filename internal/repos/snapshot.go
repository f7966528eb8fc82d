package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/types"
)

// SnapshotRepo is the read side of the inventory time series. Snapshots are
// written by the ingestion collaborator and never mutated here.
type SnapshotRepo interface {
	ListByProduct(ctx context.Context, tx *gorm.DB, productID string) ([]*types.InventorySnapshot, error)
	ListByProductBefore(ctx context.Context, tx *gorm.DB, productID string, before time.Time) ([]*types.InventorySnapshot, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.InventorySnapshot, error)
	LastByProduct(ctx context.Context, tx *gorm.DB, productID string) (*types.InventorySnapshot, error)
	GetByProductDate(ctx context.Context, tx *gorm.DB, productID string, date time.Time) (*types.InventorySnapshot, error)
	DistinctProducts(ctx context.Context, tx *gorm.DB) ([]string, error)
}

type snapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) SnapshotRepo {
	return &snapshotRepo{db: db, log: baseLog.With("repo", "SnapshotRepo")}
}

func (r *snapshotRepo) ListByProduct(ctx context.Context, tx *gorm.DB, productID string) ([]*types.InventorySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.InventorySnapshot
	err := transaction.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("snapshot_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *snapshotRepo) ListByProductBefore(ctx context.Context, tx *gorm.DB, productID string, before time.Time) ([]*types.InventorySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.InventorySnapshot
	err := transaction.WithContext(ctx).
		Where("product_id = ? AND snapshot_date < ?", productID, before).
		Order("snapshot_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *snapshotRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.InventorySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.InventorySnapshot
	err := transaction.WithContext(ctx).
		Order("product_id ASC, snapshot_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *snapshotRepo) LastByProduct(ctx context.Context, tx *gorm.DB, productID string) (*types.InventorySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.InventorySnapshot
	err := transaction.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("snapshot_date DESC").
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

func (r *snapshotRepo) GetByProductDate(ctx context.Context, tx *gorm.DB, productID string, date time.Time) (*types.InventorySnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.InventorySnapshot
	err := transaction.WithContext(ctx).
		Where("product_id = ? AND snapshot_date = ?", productID, date).
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

func (r *snapshotRepo) DistinctProducts(ctx context.Context, tx *gorm.DB) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []string
	err := transaction.WithContext(ctx).
		Model(&types.InventorySnapshot{}).
		Distinct("product_id").
		Order("product_id ASC").
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
