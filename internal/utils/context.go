package utils

import (
	"context"

	"github.com/gin-gonic/gin"
)

const (
	IdentityIdKey    = "IdentityId"
	IdentityTokenKey = "IdentityToken"
)

type CustomContext struct {
	AppSource     string
	IdentityId    string
	IdentityToken string
}

type customContextKeyType string

const customContextKey customContextKeyType = "CUSTOM_CONTEXT"

func WithCustomContext(ctx context.Context, customContext *CustomContext) context.Context {
	return context.WithValue(ctx, customContextKey, customContext)
}

func WithCustomContextFromGinRequest(c *gin.Context, appSource string) context.Context {
	customContext := &CustomContext{
		AppSource:     appSource,
		IdentityId:    c.GetString(IdentityIdKey),
		IdentityToken: c.GetString(IdentityTokenKey),
	}
	return WithCustomContext(c.Request.Context(), customContext)
}

func GetContext(ctx context.Context) *CustomContext {
	customContext, ok := ctx.Value(customContextKey).(*CustomContext)
	if !ok {
		return new(CustomContext)
	}
	return customContext
}

func GetAppSourceFromContext(ctx context.Context) string {
	return GetContext(ctx).AppSource
}

func GetIdentityIdFromContext(ctx context.Context) string {
	return GetContext(ctx).IdentityId
}

func GetIdentityTokenFromContext(ctx context.Context) string {
	return GetContext(ctx).IdentityToken
}
