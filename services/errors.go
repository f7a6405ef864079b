package services

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrTableUnavailable       = errors.New("table unavailable")
	ErrCapacityInsufficient   = errors.New("capacity insufficient")
	ErrConcurrentModification = errors.New("concurrent modification, retry the request")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrForbidden              = errors.New("forbidden")
)

var (
	ErrTableNumberTaken = errors.New("table number already used by an active table")
	ErrTableHasHistory  = errors.New("table has reservation history, deactivate it instead")
	ErrCategoryNotEmpty = errors.New("category still has menu items")
)

const (
	mysqlDeadlock        = 1213
	mysqlLockWaitTimeout = 1205
)

// translateStoreError maps lock conflicts reported by the database driver to
// ErrConcurrentModification. Anything else passes through unchanged.
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && (mysqlErr.Number == mysqlDeadlock || mysqlErr.Number == mysqlLockWaitTimeout) {
		return errors.Join(ErrConcurrentModification, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return errors.Join(ErrConcurrentModification, err)
	}

	return err
}
