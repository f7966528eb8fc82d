package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/types"
)

// ModelVersionRepo is the append-only audit log of training runs. There is
// deliberately no update or delete.
type ModelVersionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ModelVersion) error
	GetByVersion(ctx context.Context, tx *gorm.DB, version string) (*types.ModelVersion, error)
	List(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ModelVersion, error)
}

type modelVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModelVersionRepo(db *gorm.DB, baseLog *logger.Logger) ModelVersionRepo {
	return &modelVersionRepo{db: db, log: baseLog.With("repo", "ModelVersionRepo")}
}

func (r *modelVersionRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ModelVersion) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *modelVersionRepo) GetByVersion(ctx context.Context, tx *gorm.DB, version string) (*types.ModelVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ModelVersion
	err := transaction.WithContext(ctx).
		Where("version = ?", version).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.Version == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *modelVersionRepo) List(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ModelVersion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []*types.ModelVersion
	err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
