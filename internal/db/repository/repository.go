package repository

import (
	"context"
	"fmt"

	"github.com/Avi18971911/Reconstructor/internal/landscape/model"
)

// Repository stores values of one type. Implementations are shared by every partition
// worker of a sink and must be safe for concurrent use.
type Repository[ValueType any] interface {
	// Add persists a single value. Any storage failure is returned as a *PersistingError.
	Add(ctx context.Context, value ValueType) error
}

// TimeWindow bounds a query by record timestamp in epoch milliseconds. Nil means unbounded.
type TimeWindow struct {
	From *int64
	To   *int64
}

type RecordReader interface {
	FindByToken(ctx context.Context, landscapeToken string, window TimeWindow) ([]model.LandscapeRecord, error)
}

// PersistingError reports that a storage backend failed to persist a value.
type PersistingError struct {
	Op  string
	Err error
}

func NewPersistingError(op string, err error) *PersistingError {
	return &PersistingError{Op: op, Err: err}
}

func (e *PersistingError) Error() string {
	return fmt.Sprintf("failed to persist during %s: %v", e.Op, e.Err)
}

func (e *PersistingError) Unwrap() error {
	return e.Err
}
