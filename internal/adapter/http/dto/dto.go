package dto

import "time"

// --- Requests ---

// PurchaseRequest starts a submission for a catalog option.
type PurchaseRequest struct {
	OptionID      string            `json:"option_id" binding:"required,uuid"`
	FormData      map[string]string `json:"form_data" binding:"required"`
	Documents     []string          `json:"documents"`
	PaymentMethod string            `json:"payment_method" binding:"required,oneof=wallet online"`
}

// RetryPaymentRequest retries payment for a payment-failed submission.
type RetryPaymentRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required,oneof=wallet online"`
}

// ReUploadRequest replaces rejected documents on a submission.
type ReUploadRequest struct {
	Documents []string `json:"documents" binding:"required,min=1"`
}

// AdminStatusRequest moves a submission through the review workflow.
type AdminStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Remarks string `json:"remarks"`
}

// TopUpRequest starts a wallet top-up through the payment gateway.
// Amount is in paise.
type TopUpRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// ManualCreditRequest is an administrator wallet adjustment. Reference,
// when given, deduplicates a double-submitted form.
type ManualCreditRequest struct {
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Reason    string `json:"reason" binding:"required"`
	Reference string `json:"reference"`
}

// --- Responses ---

// StatusEntryResponse is one history record on a submission.
type StatusEntryResponse struct {
	Status    string    `json:"status"`
	Remarks   string    `json:"remarks"`
	ActorRole string    `json:"actor_role"`
	ActorID   string    `json:"actor_id,omitempty"`
	At        time.Time `json:"at"`
}

// SubmissionResponse is the client view of a submission.
type SubmissionResponse struct {
	ID             string                `json:"id"`
	RetailerID     string                `json:"retailer_id"`
	ServiceID      string                `json:"service_id"`
	SubServiceID   string                `json:"sub_service_id"`
	OptionID       string                `json:"option_id"`
	FormData       map[string]string     `json:"form_data"`
	Documents      []string              `json:"documents,omitempty"`
	Amount         int64                 `json:"amount"`
	PaymentMethod  string                `json:"payment_method"`
	PaymentStatus  string                `json:"payment_status"`
	Status         string                `json:"status"`
	PaymentOrderID string                `json:"payment_order_id,omitempty"`
	StatusHistory  []StatusEntryResponse `json:"status_history"`
	AdminRemarks   string                `json:"admin_remarks,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// PurchaseResponse wraps the submission plus the gateway redirect for
// online payments.
type PurchaseResponse struct {
	Submission SubmissionResponse `json:"submission"`
	PaymentURL string             `json:"payment_url,omitempty"`
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Amount          int64     `json:"amount"`
	PreviousBalance int64     `json:"previous_balance"`
	UpdatedBalance  int64     `json:"updated_balance"`
	Reason          string    `json:"reason"`
	SubmissionID    string    `json:"submission_id,omitempty"`
	ExternalOrderID string    `json:"external_order_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// WalletBalanceResponse carries the current balance in paise.
type WalletBalanceResponse struct {
	Balance int64 `json:"balance"`
}

// TopUpResponse carries the gateway handoff for a wallet top-up.
type TopUpResponse struct {
	OrderID    string `json:"order_id"`
	PaymentURL string `json:"payment_url"`
}

// ReconcileResponse reports the outcome of reconciling one order.
type ReconcileResponse struct {
	OrderID       string              `json:"order_id"`
	GatewayStatus string              `json:"gateway_status"`
	Applied       bool                `json:"applied"`
	Submission    *SubmissionResponse `json:"submission,omitempty"`
}

// Paginated wraps a list payload with paging metadata.
type Paginated[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}
