package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/rulekeeper/internal/types"
)

// ErrInvalidArgument indicates a malformed request.
var ErrInvalidArgument = errors.New("invalid argument")

// Tree construction failures map to INVALID_ARGUMENT.
var buildErrors = []error{
	ErrInvalidArgument,
	types.ErrNoRoot,
	types.ErrMultipleRoots,
	types.ErrInvalidParent,
	types.ErrDuplicateNode,
	types.ErrOrphanNode,
	types.ErrUnknownNodeType,
	types.ErrInvalidRecord,
	types.ErrTreeTooDeep,
	types.ErrTooManyNodes,
}

// StatusCode classifies err for gRPC.
// Missing trees map to NOT_FOUND, validation errors to INVALID_ARGUMENT,
// context errors to DEADLINE_EXCEEDED/CANCELED and everything else (storage)
// to UNAVAILABLE.
func StatusCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}

	switch {
	case errors.Is(err, types.ErrTreeNotFound):
		return codes.NotFound
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	for _, target := range buildErrors {
		if errors.Is(err, target) {
			return codes.InvalidArgument
		}
	}
	return codes.Unavailable
}

// StatusError converts err into a gRPC status error.
func StatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(StatusCode(err), err.Error())
}
