package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockPrediction is one cached forecast for (product_id, prediction_date).
// The row keeps the full feature vector used to produce the prediction so
// cached days can be fed straight back into a feature window.
type StockPrediction struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID      string    `gorm:"column:product_id;not null;index:idx_prediction_product_date,unique,priority:1" json:"product_id"`
	PredictionDate time.Time `gorm:"column:prediction_date;not null;index:idx_prediction_product_date,unique,priority:2" json:"prediction_date"`
	PredictedStock float64   `gorm:"column:predicted_stock;not null" json:"predicted_stock"`

	QuantityOnHand    float64 `gorm:"column:quantity_on_hand;not null;default:0" json:"quantity_on_hand"`
	QuantityReserved  float64 `gorm:"column:quantity_reserved;not null;default:0" json:"quantity_reserved"`
	ReorderPoint      float64 `gorm:"column:reorder_point;not null;default:0" json:"reorder_point"`
	OptimalStockLevel float64 `gorm:"column:optimal_stock_level;not null;default:0" json:"optimal_stock_level"`
	AverageDailyUsage float64 `gorm:"column:average_daily_usage;not null;default:0" json:"average_daily_usage"`
	StockStatus       int     `gorm:"column:stock_status;not null;default:0" json:"stock_status"`
	DayOfWeek         int     `gorm:"column:day_of_week;not null;default:0" json:"day_of_week"`
	IsWeekend         int     `gorm:"column:is_weekend;not null;default:0" json:"is_weekend"`
	Category          int     `gorm:"column:category;not null;default:0" json:"category"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (StockPrediction) TableName() string { return "stock_predictions_cache" }

func (p *StockPrediction) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
