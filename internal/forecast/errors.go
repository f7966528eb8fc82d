package forecast

import (
	"fmt"
	"time"
)

// InsufficientHistoryError means fewer than the required number of usable
// (real + cached) days exist for a product. Batch callers skip the product
// and continue.
type InsufficientHistoryError struct {
	ProductID string
	Required  int
	Available int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for product %s: need %d days, have %d", e.ProductID, e.Required, e.Available)
}

// UnknownProductError means no snapshots exist at all for the product.
type UnknownProductError struct {
	ProductID string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("no inventory history for product %s", e.ProductID)
}

// HorizonExceededError means the requested date is further out than the
// engine's iteration cap.
type HorizonExceededError struct {
	ProductID string
	Days      int
	MaxSteps  int
}

func (e *HorizonExceededError) Error() string {
	return fmt.Sprintf("forecast horizon for product %s is %d days, cap is %d", e.ProductID, e.Days, e.MaxSteps)
}

// InvalidRangeError means the requested range ends before it starts.
type InvalidRangeError struct {
	ProductID string
	Start     time.Time
	End       time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid forecast range for product %s: end %s is before start %s",
		e.ProductID, e.End.Format("2006-01-02"), e.Start.Format("2006-01-02"))
}

// CacheWriteError wraps a failed cache upsert. It is logged and never fails
// the forecast that produced the prediction.
type CacheWriteError struct {
	ProductID string
	Date      time.Time
	Err       error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("cache write for product %s at %s: %v", e.ProductID, e.Date.Format("2006-01-02"), e.Err)
}

func (e *CacheWriteError) Unwrap() error { return e.Err }
