package middleware

import (
	"context"
	"fmt"

	"bookingledger/internal/app/commands"
	"bookingledger/internal/app/queries"
)

type Validator interface {
	Validate(ctx context.Context, message any) error
}

// RejectedError is a message refused before any handler ran. Err is the
// validator's error and stays reachable through errors.As.
type RejectedError struct {
	Key string
	Err error
}

func (e *RejectedError) Error() string { return fmt.Sprintf("%s rejected: %v", e.Key, e.Err) }

func (e *RejectedError) Unwrap() error { return e.Err }

func check(ctx context.Context, v Validator, key string, message any) error {
	if err := v.Validate(ctx, message); err != nil {
		return &RejectedError{Key: key, Err: err}
	}
	return nil
}

func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := check(ctx, v, cmd.Key(), cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := check(ctx, v, q.Key(), q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
