package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const (
	principalContextKey = "bookingledger.principal"

	// ViewerHeader carries the user id asserted by the upstream gateway.
	ViewerHeader = "X-User-ID"
	// RolesHeader carries a comma separated role list.
	RolesHeader       = "X-User-Roles"
	IdempotencyHeader = "Idempotency-Key"

	RoleOperator = "operator"
)

type principal struct {
	ID    string
	Roles []string
}

func (p principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if strings.ToLower(r) == role {
			return true
		}
	}
	return false
}

// HeaderAuth trusts identity headers set by an authenticating gateway in
// front of the service. Requests without them continue anonymously.
func HeaderAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(ViewerHeader))
		if id == "" {
			c.Next()
			return
		}
		var roles []string
		for _, r := range strings.Split(c.GetHeader(RolesHeader), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}
		setPrincipal(c, principal{ID: id, Roles: roles})
		c.Next()
	}
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireRole(c *gin.Context, role string) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	if role != "" && !p.HasRole(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return principal{}, false
	}
	return p, true
}
