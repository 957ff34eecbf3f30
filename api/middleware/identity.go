package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/customeros/mailsetup/internal/utils"
)

const (
	IdentityIdHeader    = "X-MAILSETUP-IDENTITY-ID"
	IdentityTokenHeader = "X-MAILSETUP-IDENTITY-TOKEN"
)

// IdentityMiddleware stores the caller's session identity. It is passed on to the connectivity test.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(utils.IdentityIdKey, strings.TrimSpace(c.GetHeader(IdentityIdHeader)))
		c.Set(utils.IdentityTokenKey, strings.TrimSpace(c.GetHeader(IdentityTokenHeader)))
		c.Next()
	}
}
