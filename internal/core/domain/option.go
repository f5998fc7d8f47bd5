package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServiceOption is the read-only projection of a purchasable catalog
// option. The catalog itself is owned elsewhere; this engine only reads
// price and purchasability.
type ServiceOption struct {
	ID           uuid.UUID `json:"id"`
	ServiceID    uuid.UUID `json:"service_id"`
	SubServiceID uuid.UUID `json:"sub_service_id"`
	Name         string    `json:"name"`
	// RetailerPrice is the amount frozen into a submission at purchase
	// time, in paise.
	RetailerPrice int64     `json:"retailer_price"`
	IsActive      bool      `json:"is_active"`
	IsExternal    bool      `json:"is_external"` // External-link options redirect off-platform
	UpdatedAt     time.Time `json:"updated_at"`
}

// Purchasable reports whether a purchase may be started for this option.
func (o *ServiceOption) Purchasable() bool {
	return o.IsActive && !o.IsExternal
}
