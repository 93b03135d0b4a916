package mapper

import (
	"errors"
	"fmt"
)

// Sentinel errors for mapper and session operations
var (
	// ErrInvalidArgument is returned for nil entities, entities missing an
	// id where one is required, and references to unpersisted entities
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrHasDependents is returned when a restaurant still has evaluations
	// and the delete policy restricts the delete
	ErrHasDependents = errors.New("entity has dependent rows")

	// ErrTxActive is returned by Begin when a transaction is already open
	ErrTxActive = errors.New("transaction already active")

	// ErrNoTx is returned by Commit and Rollback without an open transaction
	ErrNoTx = errors.New("no active transaction")

	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("persistence context closed")
)

// OpCascade marks a failure in the middle of a cascaded write
const OpCascade = "cascade"

// StorageError reports a failure at the SQL boundary
type StorageError struct {
	Op    string // select, insert, update, delete, sequence, begin, commit, rollback, cascade
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s on %s failed: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageFailure checks if an error is, or wraps, a *StorageError
func IsStorageFailure(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsCascadeFailure checks if an error was raised mid-cascade
func IsCascadeFailure(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Op == OpCascade
}

// IsInvalidArgument checks if an error is ErrInvalidArgument
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsHasDependents checks if an error is ErrHasDependents
func IsHasDependents(err error) bool {
	return errors.Is(err, ErrHasDependents)
}

func storageError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Table: table, Err: err}
}

func cascadeError(table string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: OpCascade, Table: table, Err: err}
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// danglingReference reports a foreign key pointing at no row
func danglingReference(table, column string, id int64) error {
	return &StorageError{
		Op:    "select",
		Table: table,
		Err:   fmt.Errorf("%s references missing row %d", column, id),
	}
}
