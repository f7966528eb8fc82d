package repos

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.InventorySnapshot{}, &types.StockPrediction{}, &types.ModelVersion{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

var repoBase = time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

func repoDay(n int) time.Time { return repoBase.AddDate(0, 0, n) }

func seedSnapshots(t *testing.T, db *gorm.DB, productID string, days int) {
	t.Helper()
	for i := 0; i < days; i++ {
		row := &types.InventorySnapshot{
			ProductID:         productID,
			SnapshotDate:      repoDay(i),
			QuantityOnHand:    float64(100 - i),
			QuantityAvailable: float64(100 - i),
		}
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed snapshot: %v", err)
		}
	}
}

func TestSnapshotModelsMigrateAndStampCreatedAt(t *testing.T) {
	db := openTestDB(t)

	// Migration must succeed on the sqlite test backend, and created_at is
	// stamped by gorm at insert rather than by a database default.
	row := &types.InventorySnapshot{ProductID: "p1", SnapshotDate: repoDay(0)}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("create snapshot: %v", err)
	}
	var got types.InventorySnapshot
	if err := db.First(&got, "product_id = ?", "p1").Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("created_at not stamped on insert")
	}

	version := &types.ModelVersion{Version: "20250101_000000", Decision: types.ModelDecisionAccepted}
	if err := db.Create(version).Error; err != nil {
		t.Fatalf("create model version: %v", err)
	}
	if version.CreatedAt.IsZero() {
		t.Fatalf("model version created_at not stamped")
	}
}

func TestSnapshotRepoListByProductBefore(t *testing.T) {
	db := openTestDB(t)
	repo := NewSnapshotRepo(db, logger.NewNop())
	ctx := context.Background()

	seedSnapshots(t, db, "p1", 5)
	seedSnapshots(t, db, "p2", 2)

	rows, err := repo.ListByProductBefore(ctx, nil, "p1", repoDay(3))
	if err != nil {
		t.Fatalf("ListByProductBefore: %v", err)
	}
	// Strictly earlier than the cutoff, ordered by date.
	if len(rows) != 3 {
		t.Fatalf("rows: want=3 got=%d", len(rows))
	}
	for i, r := range rows {
		if !r.SnapshotDate.Equal(repoDay(i)) {
			t.Fatalf("row %d date: want=%v got=%v", i, repoDay(i), r.SnapshotDate)
		}
		if r.ProductID != "p1" {
			t.Fatalf("row %d product: %q", i, r.ProductID)
		}
	}
}

func TestSnapshotRepoLastByProduct(t *testing.T) {
	db := openTestDB(t)
	repo := NewSnapshotRepo(db, logger.NewNop())
	ctx := context.Background()

	seedSnapshots(t, db, "p1", 4)

	last, err := repo.LastByProduct(ctx, nil, "p1")
	if err != nil {
		t.Fatalf("LastByProduct: %v", err)
	}
	if last == nil || !last.SnapshotDate.Equal(repoDay(3)) {
		t.Fatalf("last: %+v", last)
	}

	missing, err := repo.LastByProduct(ctx, nil, "ghost")
	if err != nil {
		t.Fatalf("LastByProduct(ghost): %v", err)
	}
	if missing != nil {
		t.Fatalf("missing product: want nil, got %+v", missing)
	}
}

func TestSnapshotRepoGetByProductDate(t *testing.T) {
	db := openTestDB(t)
	repo := NewSnapshotRepo(db, logger.NewNop())
	ctx := context.Background()

	seedSnapshots(t, db, "p1", 3)

	got, err := repo.GetByProductDate(ctx, nil, "p1", repoDay(1))
	if err != nil {
		t.Fatalf("GetByProductDate: %v", err)
	}
	if got == nil || got.QuantityOnHand != 99 {
		t.Fatalf("row: %+v", got)
	}

	none, err := repo.GetByProductDate(ctx, nil, "p1", repoDay(9))
	if err != nil {
		t.Fatalf("GetByProductDate(miss): %v", err)
	}
	if none != nil {
		t.Fatalf("missing date: want nil, got %+v", none)
	}
}

func TestSnapshotRepoDistinctProducts(t *testing.T) {
	db := openTestDB(t)
	repo := NewSnapshotRepo(db, logger.NewNop())
	ctx := context.Background()

	seedSnapshots(t, db, "beta", 2)
	seedSnapshots(t, db, "alpha", 3)

	ids, err := repo.DistinctProducts(ctx, nil)
	if err != nil {
		t.Fatalf("DistinctProducts: %v", err)
	}
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
		t.Fatalf("ids: %v", ids)
	}
}

func TestSnapshotRepoListAllOrdersByProductThenDate(t *testing.T) {
	db := openTestDB(t)
	repo := NewSnapshotRepo(db, logger.NewNop())
	ctx := context.Background()

	seedSnapshots(t, db, "b", 2)
	seedSnapshots(t, db, "a", 2)

	rows, err := repo.ListAll(ctx, nil)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows: want=4 got=%d", len(rows))
	}
	if rows[0].ProductID != "a" || rows[3].ProductID != "b" {
		t.Fatalf("ordering: %q ... %q", rows[0].ProductID, rows[3].ProductID)
	}
	if !rows[1].SnapshotDate.After(rows[0].SnapshotDate) {
		t.Fatalf("date ordering within product broken")
	}
}
