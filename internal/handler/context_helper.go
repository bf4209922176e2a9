package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/attendfi/attendfi-api/internal/middleware"
	"github.com/attendfi/attendfi-api/internal/models"
	appErrors "github.com/attendfi/attendfi-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// callerAddress is the ledger address the request acts on behalf of, empty
// for anonymous reads.
func callerAddress(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return ""
	}
	return claims.Address
}

func parseEventID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, appErrors.Clonef(appErrors.ErrValidation, "invalid event id %q", c.Param("id"))
	}
	return id, nil
}

func parseSessionIndex(c *gin.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, appErrors.Clonef(appErrors.ErrValidation, "invalid session index %q", c.Param("index"))
	}
	return index, nil
}
