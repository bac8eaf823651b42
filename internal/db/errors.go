package db

import (
	"errors"
	"fmt"
)

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	ErrKeyExists   = errors.New("db: key already exists")
	ErrConflict    = errors.New("db: revision conflict")
)

// Op constants map to Redis command names (or SQL statements) for error context.
const (
	OpHGetAll  = "HGETALL"
	OpHSetCAS  = "HSETCAS"
	OpExists   = "EXISTS"
	OpGet      = "GET"
	OpSet      = "SET"
	OpSMembers = "SMEMBERS"
	OpZRange   = "ZRANGE"
	OpQuery    = "QUERY"
	OpExec     = "EXEC"
	OpMigrate  = "MIGRATE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// ConflictError reports a failed compare-and-swap together with the stored revision.
type ConflictError struct {
	Current int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: current revision is %d", ErrConflict.Error(), e.Current)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
