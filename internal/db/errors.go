package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
	ErrAliasNotFound = errors.New("db: alias not found")
	ErrAliasConflict = errors.New("db: alias conflicts with index name")
)

// Op constants map to Redis command names for error context.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpListIndexes = "FT._LIST"
	OpAliasUpdate = "FT.ALIASUPDATE"
	OpAliasDel    = "FT.ALIASDEL"
	OpExec        = "EXEC"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
