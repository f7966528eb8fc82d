package model

import "fmt"

// ModelLoadError means a persisted artifact could not be read or decoded.
// At process start this is fatal unless a backup version can be restored.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model artifact %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }
