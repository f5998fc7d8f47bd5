package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a retailer's prepaid balance. One wallet per retailer,
// created lazily on the first credit or debit.
type Wallet struct {
	ID         uuid.UUID `json:"id"`
	RetailerID uuid.UUID `json:"retailer_id"`
	Balance    int64     `json:"balance"` // In paise (smallest currency unit)
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewWallet creates an empty wallet for a retailer.
func NewWallet(retailerID uuid.UUID) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:         uuid.New(),
		RetailerID: retailerID,
		Balance:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
