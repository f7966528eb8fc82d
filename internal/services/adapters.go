package services

import (
	"context"
	"time"

	"github.com/stockcast/stockcast-backend/internal/forecast"
	"github.com/stockcast/stockcast-backend/internal/lifecycle"
	"github.com/stockcast/stockcast-backend/internal/repos"
	"github.com/stockcast/stockcast-backend/internal/types"
)

// NewSnapshotSource adapts the snapshot repo to the forecast read interface.
func NewSnapshotSource(repo repos.SnapshotRepo) forecast.SnapshotSource {
	return snapshotSource{repo: repo}
}

// NewSnapshotLister adapts the snapshot repo to the lifecycle training feed.
func NewSnapshotLister(repo repos.SnapshotRepo) lifecycle.SnapshotLister {
	return snapshotLister{repo: repo}
}

// NewVersionRecorder adapts the model version repo to the lifecycle audit sink.
func NewVersionRecorder(repo repos.ModelVersionRepo) lifecycle.VersionRecorder {
	return versionRecorder{repo: repo}
}

// snapshotSource narrows repos.SnapshotRepo to what the forecasting side
// reads, dropping the transaction parameter the read path never uses.
type snapshotSource struct {
	repo repos.SnapshotRepo
}

func (a snapshotSource) ListBefore(ctx context.Context, productID string, before time.Time) ([]*types.InventorySnapshot, error) {
	return a.repo.ListByProductBefore(ctx, nil, productID, before)
}

func (a snapshotSource) Last(ctx context.Context, productID string) (*types.InventorySnapshot, error) {
	return a.repo.LastByProduct(ctx, nil, productID)
}

func (a snapshotSource) Get(ctx context.Context, productID string, date time.Time) (*types.InventorySnapshot, error) {
	return a.repo.GetByProductDate(ctx, nil, productID, date)
}

type snapshotLister struct {
	repo repos.SnapshotRepo
}

func (a snapshotLister) ListAll(ctx context.Context) ([]*types.InventorySnapshot, error) {
	return a.repo.ListAll(ctx, nil)
}

type versionRecorder struct {
	repo repos.ModelVersionRepo
}

func (a versionRecorder) Create(ctx context.Context, row *types.ModelVersion) error {
	return a.repo.Create(ctx, nil, row)
}
