// Package service holds the guide's use cases. Each write runs in one
// transaction on the session's PersistenceContext.
package service

import (
	"context"
	"fmt"

	"github.com/ammar0144/guideresto/pkg/mapper"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gopkg.in/validator.v2"
)

// ErrOperationFailed matches every error returned by a failed write
var ErrOperationFailed = errors.New("operation failed")

// OperationError reports a write that was rolled back, or could not be
// started or committed. Err may combine the cause with a rollback failure.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Is matches ErrOperationFailed
func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}

type base struct {
	pc  *mapper.PersistenceContext
	log *log.Entry
}

func newBase(pc *mapper.PersistenceContext, component string) base {
	return base{
		pc:  pc,
		log: log.WithField("component", component).WithField("session", pc.ID()),
	}
}

// inTx runs fn in a transaction, commits on success and rolls back on
// failure. revert, when not nil, restores in-memory edits fn's caller made
// before the write.
func (b *base) inTx(ctx context.Context, op string, revert func(), fn func(ctx context.Context) error) error {
	if err := b.pc.Begin(ctx); err != nil {
		return &OperationError{Op: op, Err: errors.Wrap(err, "begin")}
	}

	if err := fn(ctx); err != nil {
		err = multierr.Append(err, b.pc.Rollback(ctx))
		if revert != nil {
			revert()
		}
		b.log.WithError(err).WithField("op", op).Warn("operation rolled back")
		return &OperationError{Op: op, Err: err}
	}

	if err := b.pc.Commit(ctx); err != nil {
		if revert != nil {
			revert()
		}
		return &OperationError{Op: op, Err: errors.Wrap(err, "commit")}
	}
	b.log.WithField("op", op).Debug("operation committed")
	return nil
}

// check validates an input draft against its validate tags
func check(op string, draft interface{}) error {
	if err := validator.Validate(draft); err != nil {
		return &OperationError{Op: op, Err: errors.Wrapf(mapper.ErrInvalidArgument, "%v", err)}
	}
	return nil
}
