package api

import (
	"context"

	"github.com/terra-clan/training-engine/internal/models"
)

type clientKey struct{}

// ClientFromContext returns the authenticated caller, or nil outside the
// auth middleware
func ClientFromContext(ctx context.Context) *models.ApiClient {
	client, _ := ctx.Value(clientKey{}).(*models.ApiClient)
	return client
}

// ContextWithClient attaches the authenticated caller to ctx
func ContextWithClient(ctx context.Context, client *models.ApiClient) context.Context {
	return context.WithValue(ctx, clientKey{}, client)
}

// callerName labels log lines with the headset or console that sent them
func callerName(ctx context.Context) string {
	if c := ClientFromContext(ctx); c != nil {
		return c.Name
	}
	return "unknown"
}
