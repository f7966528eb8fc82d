package model

import (
	"fmt"
	"sync/atomic"
)

// Snapshot is one immutable (model, scaler, version) triple. Forecast calls
// load a snapshot once at entry so a concurrent swap never changes the pair
// mid-call.
type Snapshot struct {
	Model   *Regressor
	Scaler  *StandardScaler
	Version string
}

// ActiveModel owns the pointer to the pair currently serving forecasts.
// Readers pay one atomic load; promotion swaps the pointer and nothing else.
type ActiveModel struct {
	ptr atomic.Pointer[Snapshot]
}

func NewActiveModel(snap *Snapshot) *ActiveModel {
	a := &ActiveModel{}
	if snap != nil {
		a.ptr.Store(snap)
	}
	return a
}

// Snapshot returns the active triple, or an error when nothing is loaded.
func (a *ActiveModel) Snapshot() (*Snapshot, error) {
	snap := a.ptr.Load()
	if snap == nil {
		return nil, fmt.Errorf("no active model loaded")
	}
	return snap, nil
}

// Swap replaces the active triple.
func (a *ActiveModel) Swap(snap *Snapshot) {
	a.ptr.Store(snap)
}

// Version returns the active version token, "" when nothing is loaded.
func (a *ActiveModel) Version() string {
	snap := a.ptr.Load()
	if snap == nil {
		return ""
	}
	return snap.Version
}
