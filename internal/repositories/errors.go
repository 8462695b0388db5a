package repositories

import (
	"errors"
	"fmt"
)

// ErrKeyNotFound is wrapped by backends when a key does not exist.
var ErrKeyNotFound = errors.New("repository: key not found")

// ErrorKind classifies StoreError values.
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindNotFound
	ErrorKindConflict
	ErrorKindUnavailable
)

// StoreError implements RepositoryError for backends without their own error model.
type StoreError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

// NewStoreError wraps err with an operation label and a classification.
func NewStoreError(op string, kind ErrorKind, err error) *StoreError {
	return &StoreError{Op: op, Kind: kind, Err: err}
}

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StoreError) IsNotFound() bool    { return e != nil && e.Kind == ErrorKindNotFound }
func (e *StoreError) IsConflict() bool    { return e != nil && e.Kind == ErrorKindConflict }
func (e *StoreError) IsUnavailable() bool { return e != nil && e.Kind == ErrorKindUnavailable }

// IsNotFound reports whether err is a RepositoryError classified as not found.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return errors.Is(err, ErrKeyNotFound)
}

// IsUnavailable reports whether err is a RepositoryError classified as unavailable.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsUnavailable()
	}
	return false
}
