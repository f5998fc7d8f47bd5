package ports

import (
	"context"

	"retailer-portal/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for
// pessimistic locking of the wallet row.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByRetailerID(ctx context.Context, retailerID uuid.UUID) (*domain.Wallet, error)
	GetByRetailerIDForUpdate(ctx context.Context, tx pgx.Tx, retailerID uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error
}

// TransactionRepository defines persistence for immutable ledger entries.
// There is intentionally no update or delete.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// GetByCorrelationKey is the idempotency lookup. It runs on the
	// caller's transaction so the check and the subsequent insert are
	// one isolated unit.
	GetByCorrelationKey(ctx context.Context, tx pgx.Tx, key string) (*domain.Transaction, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.Transaction, int64, error)
}

// SubmissionRepository defines persistence for purchase submissions.
// Submissions are never deleted; mutations always append a history entry.
type SubmissionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, s *domain.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	GetByPaymentOrderID(ctx context.Context, orderID string) (*domain.Submission, error)
	ListByRetailer(ctx context.Context, retailerID uuid.UUID, page, pageSize int) ([]domain.Submission, int64, error)
	// UpdatePayment sets the payment method, outcome and workflow status
	// in one statement, appending the history entry.
	UpdatePayment(ctx context.Context, tx pgx.Tx, id uuid.UUID, method domain.PaymentMethod, ps domain.PaymentStatus, status domain.SubmissionStatus, paymentOrderID *string, entry domain.StatusEntry) error
	// SetPaymentOrder records the gateway order id without touching
	// status or history.
	SetPaymentOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID, orderID string) error
	// UpdateStatus changes the workflow status only (admin review path,
	// document re-upload), appending the history entry.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.SubmissionStatus, adminRemarks *string, entry domain.StatusEntry) error
	AppendDocuments(ctx context.Context, tx pgx.Tx, id uuid.UUID, files []string, entry domain.StatusEntry) error
}

// CatalogRepository is the narrow read interface onto the service
// catalog. The catalog is owned by another subsystem; this engine only
// resolves option prices and purchasability.
type CatalogRepository interface {
	GetOptionByID(ctx context.Context, id uuid.UUID) (*domain.ServiceOption, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
