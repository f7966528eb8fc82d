package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventorySnapshot is one per-product, per-day row of ground truth written
// by the ingestion side. The forecaster only ever reads these.
type InventorySnapshot struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID         string    `gorm:"column:product_id;not null;index:idx_snapshot_product_date,unique,priority:1" json:"product_id"`
	SnapshotDate      time.Time `gorm:"column:snapshot_date;not null;index:idx_snapshot_product_date,unique,priority:2" json:"snapshot_date"`
	QuantityOnHand    float64   `gorm:"column:quantity_on_hand;not null;default:0" json:"quantity_on_hand"`
	QuantityReserved  float64   `gorm:"column:quantity_reserved;not null;default:0" json:"quantity_reserved"`
	QuantityAvailable float64   `gorm:"column:quantity_available;not null;default:0" json:"quantity_available"`
	ReorderPoint      float64   `gorm:"column:reorder_point;not null;default:0" json:"reorder_point"`
	OptimalStockLevel float64   `gorm:"column:optimal_stock_level;not null;default:0" json:"optimal_stock_level"`
	AverageDailyUsage float64   `gorm:"column:average_daily_usage;not null;default:0" json:"average_daily_usage"`
	StockStatus       int       `gorm:"column:stock_status;not null;default:0" json:"stock_status"`
	Category          int       `gorm:"column:category;not null;default:0" json:"category"`
	// Calendar fields derived from snapshot_date. Monday=0 .. Sunday=6.
	DayOfWeek int `gorm:"column:day_of_week;not null;default:0" json:"day_of_week"`
	IsWeekend int `gorm:"column:is_weekend;not null;default:0" json:"is_weekend"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (InventorySnapshot) TableName() string { return "inventory_snapshots" }

func (s *InventorySnapshot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
