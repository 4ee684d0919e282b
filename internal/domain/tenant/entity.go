// internal/domain/tenant/entity.go
package tenant

import (
	"database/sql"
	"time"
)

// Tenant is the company account whose feature access is gated by its
// subscription state. The billing engine owns the Active flag and the
// gateway customer linkage; everything else belongs to the account module.
type Tenant struct {
	ID    int64  `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`

	Active bool `json:"active" db:"active"`

	GatewayCustomerID sql.NullString `json:"gateway_customer_id,omitempty" db:"gateway_customer_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
