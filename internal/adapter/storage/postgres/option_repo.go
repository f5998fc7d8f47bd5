package postgres

import (
	"context"
	"errors"
	"fmt"

	"retailer-portal/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OptionRepo implements ports.CatalogRepository. The catalog tables are
// owned by the catalog subsystem; this repo only reads what purchasing
// needs.
type OptionRepo struct {
	pool Pool
}

// NewOptionRepo creates a new OptionRepo.
func NewOptionRepo(pool Pool) *OptionRepo {
	return &OptionRepo{pool: pool}
}

// GetOptionByID fetches a catalog option by UUID.
func (r *OptionRepo) GetOptionByID(ctx context.Context, id uuid.UUID) (*domain.ServiceOption, error) {
	query := `SELECT id, service_id, sub_service_id, name, retailer_price, is_active, is_external, updated_at
		FROM service_options WHERE id = $1`

	o := &domain.ServiceOption{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.ServiceID, &o.SubServiceID, &o.Name,
		&o.RetailerPrice, &o.IsActive, &o.IsExternal, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get option by id: %w", err)
	}
	return o, nil
}
