package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

// WrapError classifies a Firestore RPC error as a repositories.StoreError. Cancellation and
// deadline errors are returned as the plain context errors so callers can tell them apart.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var storeErr *repositories.StoreError
	if errors.As(err, &storeErr) {
		return err
	}

	switch code := status.Code(err); code {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		return repositories.NewStoreError(op, kindFor(code), err)
	}
}

func kindFor(code codes.Code) repositories.ErrorKind {
	switch code {
	case codes.NotFound:
		return repositories.ErrorKindNotFound
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		return repositories.ErrorKindConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal:
		return repositories.ErrorKindUnavailable
	default:
		return repositories.ErrorKindUnknown
	}
}
