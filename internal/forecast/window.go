package forecast

import (
	"context"
	"sort"
	"time"

	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/types"
)

// SnapshotSource is the slice of the time-series store the builder needs.
type SnapshotSource interface {
	ListBefore(ctx context.Context, productID string, before time.Time) ([]*types.InventorySnapshot, error)
	Last(ctx context.Context, productID string) (*types.InventorySnapshot, error)
	Get(ctx context.Context, productID string, date time.Time) (*types.InventorySnapshot, error)
}

// CacheSource is the slice of the prediction cache the builder needs.
type CacheSource interface {
	GetRange(ctx context.Context, productID string, start, end time.Time) ([]*types.StockPrediction, error)
}

// WindowBuilder assembles the fixed-length window of snapshots ending
// strictly before a target date. Real snapshots win over cached forecasts
// on the same day. The builder only reads; it never writes anything.
type WindowBuilder struct {
	snapshots SnapshotSource
	cache     CacheSource
	log       *logger.Logger
}

func NewWindowBuilder(snapshots SnapshotSource, cache CacheSource, baseLog *logger.Logger) *WindowBuilder {
	return &WindowBuilder{
		snapshots: snapshots,
		cache:     cache,
		log:       baseLog.With("service", "WindowBuilder"),
	}
}

// BuildWindow returns exactly NSteps snapshots for productID with dates
// < before. When real history is short the gap between the last real
// snapshot and before is filled from cached predictions. A short window is
// never returned: the call fails with InsufficientHistoryError instead.
func (b *WindowBuilder) BuildWindow(ctx context.Context, productID string, before time.Time) ([]*types.InventorySnapshot, error) {
	before = DateOnly(before)

	real, err := b.snapshots.ListBefore(ctx, productID, before)
	if err != nil {
		return nil, err
	}
	if len(real) >= NSteps {
		return real[len(real)-NSteps:], nil
	}

	if len(real) == 0 {
		last, err := b.snapshots.Last(ctx, productID)
		if err != nil {
			return nil, err
		}
		if last == nil {
			return nil, &UnknownProductError{ProductID: productID}
		}
	}

	combined := append([]*types.InventorySnapshot(nil), real...)
	if b.cache != nil {
		gapStart := before.AddDate(0, 0, -NSteps)
		if len(real) > 0 {
			gapStart = DateOnly(real[len(real)-1].SnapshotDate).AddDate(0, 0, 1)
		}
		gapEnd := before.AddDate(0, 0, -1)
		if !gapStart.After(gapEnd) {
			cached, err := b.cache.GetRange(ctx, productID, gapStart, gapEnd)
			if err != nil {
				b.log.Warn("Cache read failed during window build", "product_id", productID, "error", err)
			} else {
				for _, row := range cached {
					combined = append(combined, SnapshotFromCacheRow(row))
				}
			}
		}
	}

	sort.Slice(combined, func(i, j int) bool {
		return combined[i].SnapshotDate.Before(combined[j].SnapshotDate)
	})

	if len(combined) < NSteps {
		return nil, &InsufficientHistoryError{
			ProductID: productID,
			Required:  NSteps,
			Available: len(combined),
		}
	}
	return combined[len(combined)-NSteps:], nil
}
