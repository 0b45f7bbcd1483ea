package indexstager

import "github.com/kailas-cloud/indexstager/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound          = domain.ErrNotFound
	ErrAlreadyExists     = domain.ErrAlreadyExists
	ErrInvalidConfig     = domain.ErrInvalidConfig
	ErrInvalidName       = domain.ErrInvalidName
	ErrCorruptState      = domain.ErrCorruptState
	ErrUnresolvableStage = domain.ErrUnresolvableStage
)
