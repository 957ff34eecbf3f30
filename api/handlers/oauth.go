package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/enum"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/tracing"
)

type OAuthHandler struct {
	log         logger.Logger
	provisioner interfaces.ProvisionerService
}

type BeginOAuthRequest struct {
	PreviousSessionID string `json:"previousSessionId"`
}

type BeginOAuthResponse struct {
	SessionID        string    `json:"sessionId"`
	AuthorizationURL string    `json:"authorizationUrl"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

type CompleteOAuthRequest struct {
	Code string `json:"code"`
}

func NewOAuthHandler(log logger.Logger, provisioner interfaces.ProvisionerService) *OAuthHandler {
	return &OAuthHandler{
		log:         log,
		provisioner: provisioner,
	}
}

// Begin opens an authorization session and returns the URL the user signs in at.
func (h *OAuthHandler) Begin() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "OAuthHandler.Begin")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		provider, ok := enum.GetAccountProvider(strings.ToLower(c.Param("provider")))
		if !ok || !provider.IsOAuth() {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown OAuth provider " + c.Param("provider")})
			return
		}
		tracing.TagProvider(span, provider.String())

		var request BeginOAuthRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&request); err != nil {
				tracing.TraceErr(span, err)
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		session, authorizationURL, err := h.provisioner.BeginOAuth(ctx, provider, request.PreviousSessionID)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, h.log, err)
			return
		}

		c.JSON(http.StatusCreated, BeginOAuthResponse{
			SessionID:        session.ID,
			AuthorizationURL: authorizationURL,
			ExpiresAt:        session.ExpiresAt,
		})
	}
}

// Complete exchanges the authorization code captured by the loopback listener and provisions the account.
func (h *OAuthHandler) Complete() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "OAuthHandler.Complete")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("id"))

		var request CompleteOAuthRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(request.Code) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
			return
		}

		account, err := h.provisioner.CompleteOAuth(ctx, c.Param("id"), request.Code, identityFromContext(c))
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, h.log, err)
			return
		}

		c.JSON(http.StatusCreated, account)
	}
}
