package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrBudgetExceeded   = errors.New("percentage budget exceeded")
)

// BudgetExceededError 百分比超出预算，Available 为当前可分配的余量
type BudgetExceededError struct {
	Available int
	Requested int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s: requested %d, available %d", ErrBudgetExceeded, e.Requested, e.Available)
}

func (e *BudgetExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded
}

func notFound(what, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}
