package ports

import (
	"context"
	"time"

	"retailer-portal/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- Ledger ---

// DebitRequest asks the ledger to take funds from a retailer's wallet.
type DebitRequest struct {
	RetailerID uuid.UUID
	Amount     int64
	// CorrelationKey deduplicates retried requests; empty disables the
	// guard (only FAILED records go without one).
	CorrelationKey string
	Reason         string
	SubmissionID   *uuid.UUID
}

// CreditRequest asks the ledger to add funds to a retailer's wallet.
type CreditRequest struct {
	RetailerID      uuid.UUID
	Amount          int64
	CorrelationKey  string
	Reason          string
	SubmissionID    *uuid.UUID
	ExternalOrderID *string
}

// LedgerService owns every wallet balance mutation. The balance check,
// the balance write and the ledger entry are one atomic, isolated unit;
// callers provide the enclosing pgx transaction so submission updates
// can ride in the same unit.
type LedgerService interface {
	GetOrCreateWallet(ctx context.Context, retailerID uuid.UUID) (*domain.Wallet, error)
	// Debit fails with an insufficient-funds error when the balance is
	// short; the wallet is never left partially updated. A repeated
	// correlation key returns the prior transaction without mutating.
	Debit(ctx context.Context, tx pgx.Tx, req DebitRequest) (*domain.Transaction, error)
	// Credit adds funds inside the caller's transaction. It always
	// succeeds for a valid wallet and positive amount; a repeated
	// correlation key returns the prior transaction without mutating.
	Credit(ctx context.Context, tx pgx.Tx, req CreditRequest) (*domain.Transaction, error)
	// CreditOnce applies a credit exactly once per correlation key.
	// applied=false means the key was already settled and the returned
	// transaction is the prior one.
	CreditOnce(ctx context.Context, tx pgx.Tx, req CreditRequest) (tr *domain.Transaction, applied bool, err error)
	// ManualCredit is the administrator adjustment path: a credit in its
	// own transaction, deduplicated by the admin-supplied reference when
	// one is given.
	ManualCredit(ctx context.Context, req CreditRequest) (*domain.Transaction, error)
	// RecordFailedDebit appends an audit-only FAILED entry for a refused
	// debit attempt. The balance is untouched.
	RecordFailedDebit(ctx context.Context, tx pgx.Tx, req DebitRequest) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, retailerID uuid.UUID, page, pageSize int) ([]domain.Transaction, int64, error)
}

// --- Submissions ---

// PurchaseRequest starts one submission for a catalog option.
type PurchaseRequest struct {
	RetailerID    uuid.UUID
	OptionID      uuid.UUID
	FormData      map[string]string
	Documents     []string
	PaymentMethod domain.PaymentMethod
}

// PurchaseResult is the outcome of a purchase or payment retry. For
// online payments PaymentURL carries the gateway redirect.
type PurchaseResult struct {
	Submission *domain.Submission
	PaymentURL string
}

// SubmissionService drives a submission through the payment and review
// state machine.
type SubmissionService interface {
	Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
	RetryPayment(ctx context.Context, retailerID, submissionID uuid.UUID, method domain.PaymentMethod) (*PurchaseResult, error)
	ReUploadDocuments(ctx context.Context, retailerID, submissionID uuid.UUID, files []string) (*domain.Submission, error)
	AdminUpdateStatus(ctx context.Context, submissionID uuid.UUID, status domain.SubmissionStatus, remarks string, actorID uuid.UUID) (*domain.Submission, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	ListSubmissions(ctx context.Context, retailerID uuid.UUID, page, pageSize int) ([]domain.Submission, int64, error)
}

// --- Gateway & settlement ---

// GatewayOrderRequest is the caller side of the external create-order
// contract. OrderID is caller-generated and globally unique.
type GatewayOrderRequest struct {
	OrderID     string
	Amount      int64
	CustomerID  string
	RedirectURL string
}

// GatewayOrderResponse carries the redirect URL for a created order.
type GatewayOrderResponse struct {
	OrderID    string
	PaymentURL string
}

// GatewayStatusResponse is the gateway's authoritative view of an order.
type GatewayStatusResponse struct {
	Status    string // "Success" is the only settling value
	OrderID   string
	TxnAmount int64
}

// PaymentGateway is the client port onto the external payment provider.
// Both calls have bounded timeouts; a timeout is a failure, never an
// indeterminate state.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrderResponse, error)
	CheckOrderStatus(ctx context.Context, orderID string) (*GatewayStatusResponse, error)
}

// TopUpResult carries the gateway handoff for a wallet top-up.
type TopUpResult struct {
	OrderID    string
	PaymentURL string
}

// ReconcileResult reports the outcome of reconciling one external order.
type ReconcileResult struct {
	OrderRef      domain.OrderRef
	GatewayStatus string
	// Applied is true when this call moved money; false when the order
	// was already settled (duplicate delivery) or is not successful yet.
	Applied     bool
	Transaction *domain.Transaction
	Submission  *domain.Submission
}

// SettlementService owns the gateway-facing flows: initiating wallet
// top-ups and reconciling order outcomes exactly once per order id.
type SettlementService interface {
	InitiateTopUp(ctx context.Context, retailerID uuid.UUID, amount int64) (*TopUpResult, error)
	// Reconcile is safe to call repeatedly and safe to cancel; no partial
	// ledger mutation can occur.
	Reconcile(ctx context.Context, rawOrderID string) (*ReconcileResult, error)
}

// SettlementCache is the fast-path settlement dedup check (Redis). The
// database correlation key remains the source of truth; the cache only
// short-circuits repeat deliveries.
type SettlementCache interface {
	Get(ctx context.Context, orderID string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, orderID string, value []byte, ttl time.Duration) error
}
