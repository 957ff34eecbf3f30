package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	apierrors "github.com/customeros/mailsetup/api/errors"
	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/tracing"
)

type AccountsHandler struct {
	log         logger.Logger
	provisioner interfaces.ProvisionerService
}

type AccountRequest struct {
	Name         string                    `json:"name"`
	EmailAddress string                    `json:"emailAddress"`
	Label        string                    `json:"label"`
	Settings     models.ConnectionSettings `json:"settings"`
}

type FinalizeRequest struct {
	Account *models.Account `json:"account"`
}

func NewAccountsHandler(log logger.Logger, provisioner interfaces.ProvisionerService) *AccountsHandler {
	return &AccountsHandler{
		log:         log,
		provisioner: provisioner,
	}
}

func (r AccountRequest) validate() error {
	validationErrors := apierrors.NewMultiErrors()
	if strings.TrimSpace(r.EmailAddress) == "" {
		validationErrors.Add("emailAddress", "email address is required", nil)
	}
	if !r.Settings.ImapPort.Valid() {
		validationErrors.Add("settings.imap_port", "port is out of range", nil)
	}
	if !r.Settings.SmtpPort.Valid() {
		validationErrors.Add("settings.smtp_port", "port is out of range", nil)
	}
	if validationErrors.HasErrors() {
		return validationErrors
	}
	return nil
}

func (r AccountRequest) account() *models.Account {
	return &models.Account{
		Name:         r.Name,
		EmailAddress: r.EmailAddress,
		Label:        r.Label,
		Settings:     r.Settings,
	}
}

// Template returns the account expanded with discovered settings. Nothing is validated or stored.
func (h *AccountsHandler) Template() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AccountsHandler.Template")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request AccountRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := request.validate(); err != nil {
			respondError(c, h.log, err)
			return
		}

		account, err := h.provisioner.ExpandAccount(ctx, request.account())
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, h.log, err)
			return
		}

		c.JSON(http.StatusOK, account)
	}
}

// Create provisions a password based IMAP account.
func (h *AccountsHandler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AccountsHandler.Create")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request AccountRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := request.validate(); err != nil {
			respondError(c, h.log, err)
			return
		}

		account, err := h.provisioner.ProvisionAccount(ctx, request.account(), identityFromContext(c))
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, h.log, err)
			return
		}

		tracing.TagEntity(span, account.ID)
		c.JSON(http.StatusCreated, account)
	}
}

// Finalize validates an account the caller already reviewed.
func (h *AccountsHandler) Finalize() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AccountsHandler.Finalize")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request FinalizeRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if request.Account == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "account is required"})
			return
		}

		account, err := h.provisioner.FinalizeAccount(ctx, request.Account, identityFromContext(c))
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, h.log, err)
			return
		}

		tracing.TagEntity(span, account.ID)
		c.JSON(http.StatusOK, account)
	}
}

// ListAttempts returns recent provisioning attempts for an email address.
func (h *AccountsHandler) ListAttempts() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AccountsHandler.ListAttempts")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		emailAddress := c.Query("emailAddress")
		if emailAddress == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "emailAddress query parameter is required"})
			return
		}

		limit := 0
		if rawLimit := c.Query("limit"); rawLimit != "" {
			parsed, err := strconv.Atoi(rawLimit)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
				return
			}
			limit = parsed
		}

		attempts, err := h.provisioner.ListAttempts(ctx, emailAddress, limit)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, h.log, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"attempts": attempts})
	}
}
