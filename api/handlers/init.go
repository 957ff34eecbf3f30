package handlers

import (
	"github.com/gin-gonic/gin"

	apierrors "github.com/customeros/mailsetup/api/errors"
	"github.com/customeros/mailsetup/interfaces"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/models"
	"github.com/customeros/mailsetup/internal/utils"
)

type APIHandlers struct {
	Accounts *AccountsHandler
	OAuth    *OAuthHandler
}

func InitHandlers(log logger.Logger, provisioner interfaces.ProvisionerService) *APIHandlers {
	return &APIHandlers{
		Accounts: NewAccountsHandler(log, provisioner),
		OAuth:    NewOAuthHandler(log, provisioner),
	}
}

func identityFromContext(c *gin.Context) models.Identity {
	ctx := c.Request.Context()
	return models.Identity{
		ID:    utils.GetIdentityIdFromContext(ctx),
		Token: utils.GetIdentityTokenFromContext(ctx),
	}
}

// respondError writes the error with the status its kind maps to. Server errors are logged.
func respondError(c *gin.Context, log logger.Logger, err error) {
	status := apierrors.HTTPStatus(err)
	if status >= 500 {
		log.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
