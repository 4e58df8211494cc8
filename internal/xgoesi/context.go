package xgoesi

import (
	"context"

	"github.com/antihax/goesi"
)

type contextKey string

func (c contextKey) String() string {
	return "xgoesi-" + string(c)
}

const (
	contextCharacterID contextKey = "characterID"
	contextOperationID contextKey = "operationID"
)

// NewContextWithAuth returns a new context with a characterID and an access token.
// The character ID selects the rate limit bucket of authenticated requests.
func NewContextWithAuth(ctx context.Context, characterID int32, accessToken string) context.Context {
	ctx = context.WithValue(ctx, contextCharacterID, characterID)
	return context.WithValue(ctx, goesi.ContextAccessToken, accessToken)
}

// ContextHasAccessToken reports whether the context contains an access token.
func ContextHasAccessToken(ctx context.Context) bool {
	return ctx.Value(goesi.ContextAccessToken) != nil
}

// NewContextWithOperationID returns a new context with the ID of an ESI operation.
func NewContextWithOperationID(ctx context.Context, operationID string) context.Context {
	return context.WithValue(ctx, contextOperationID, operationID)
}

// OperationIDFromContext returns the operation ID of a context and reports whether it was set.
func OperationIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextOperationID).(string)
	return id, ok
}

func characterIDFromContext(ctx context.Context) (int32, bool) {
	id, ok := ctx.Value(contextCharacterID).(int32)
	return id, ok
}
