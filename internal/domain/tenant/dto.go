// internal/domain/tenant/dto.go
package tenant

type CreateTenantRequest struct {
	Name  string `json:"name" binding:"required,max=255"`
	Email string `json:"email" binding:"required,email,max=255"`
}
