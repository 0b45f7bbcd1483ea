package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing index or alias.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate index.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidConfig signals missing or malformed session identifiers.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidName signals a name the index service would reject.
	ErrInvalidName = errors.New("invalid index name")
	// ErrCorruptState signals a live name bound to a concrete index of the same name.
	ErrCorruptState = errors.New("corrupt alias state")
	// ErrUnresolvableStage signals that no temp index is bound to the staging alias.
	ErrUnresolvableStage = errors.New("cannot resolve staged index")
)

// CorruptStateError names the live name found aliased to itself.
type CorruptStateError struct {
	Name string
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("%s: found existing index called %s aliased to itself", ErrCorruptState.Error(), e.Name)
}

func (e *CorruptStateError) Unwrap() error { return ErrCorruptState }

// UnresolvableStageError names the alias that bound no temp index.
type UnresolvableStageError struct {
	Alias string
}

func (e *UnresolvableStageError) Error() string {
	return fmt.Sprintf("%s: no temp index aliased to by %q", ErrUnresolvableStage.Error(), e.Alias)
}

func (e *UnresolvableStageError) Unwrap() error { return ErrUnresolvableStage }
