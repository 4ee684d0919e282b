// internal/middleware/helpers.go
package middleware

import "github.com/gin-gonic/gin"

// MustGetTenantID gets tenant ID from context or panics
func MustGetTenantID(c *gin.Context) int64 {
	tenantID, exists := GetTenantID(c)
	if !exists {
		panic("tenant_id not found in context")
	}
	return tenantID
}

// GetRoles gets user roles from context
func GetRoles(c *gin.Context) []string {
	roles, exists := c.Get("roles")
	if !exists {
		return []string{}
	}

	rolesList, ok := roles.([]string)
	if !ok {
		return []string{}
	}

	return rolesList
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get("tenant_id")
	return exists
}

// IsAdmin checks if user is an admin
func IsAdmin(c *gin.Context) bool {
	return HasRole(c, "admin") || HasRole(c, "super_admin")
}
