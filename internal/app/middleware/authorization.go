package middleware

import (
	"context"
	"errors"
	"strings"

	"bookingledger/internal/app/commands"
	"bookingledger/internal/app/queries"
)

// ErrViewerRequired is returned when a viewer scoped message carries no identity.
var ErrViewerRequired = errors.New("middleware: authenticated viewer required")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// ViewerScoped messages act on behalf of an authenticated user.
type ViewerScoped interface {
	ViewerID() string
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, message any) error

func (f AuthorizerFunc) Authorize(ctx context.Context, message any) error {
	return f(ctx, message)
}

// RequireViewer rejects ViewerScoped messages without a viewer id. Other
// messages pass through.
func RequireViewer() Authorizer {
	return AuthorizerFunc(func(_ context.Context, message any) error {
		scoped, ok := message.(ViewerScoped)
		if !ok {
			return nil
		}
		if strings.TrimSpace(scoped.ViewerID()) == "" {
			return ErrViewerRequired
		}
		return nil
	})
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
