package httpkit

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the authenticated caller as seen by handlers, independent of gin.
type Identity struct {
	UserID uuid.UUID
	Roles  []string
}

// HasRole checks if the caller has a specific role.
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// GetIdentity extracts the Identity set by AuthRequired.
func GetIdentity(c *gin.Context) (Identity, bool) {
	userID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return Identity{}, false
	}
	uid, ok := userID.(uuid.UUID)
	if !ok {
		return Identity{}, false
	}

	var roles []string
	if raw, ok := c.Get(ContextRolesKey); ok {
		roles, _ = raw.([]string)
	}

	return Identity{UserID: uid, Roles: roles}, true
}

// MustGetIdentity aborts with 401 when the request is unauthenticated.
func MustGetIdentity(c *gin.Context) (Identity, bool) {
	id, ok := GetIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return Identity{}, false
	}
	return id, true
}
