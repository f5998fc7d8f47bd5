package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the direction of a balance mutation.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypeDebit  TransactionType = "DEBIT"
	// TransactionTypeFailed records a debit attempt that was refused
	// (insufficient funds). The balance is untouched but the attempt is
	// part of the audit trail.
	TransactionTypeFailed TransactionType = "FAILED"
)

// Transaction is an immutable ledger entry. Once written it is never
// updated or deleted; the before/after balance snapshots make the log
// independently verifiable.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	WalletID        uuid.UUID       `json:"wallet_id"`
	Type            TransactionType `json:"type"`
	Amount          int64           `json:"amount"` // Always positive, in paise
	PreviousBalance int64           `json:"previous_balance"`
	UpdatedBalance  int64           `json:"updated_balance"`
	// CorrelationKey deduplicates externally-sourced mutations: the raw
	// gateway order id for settlements, "sub:<id>" for purchase debits.
	// Nil for entries that need no dedup guard (e.g. FAILED records).
	CorrelationKey  *string    `json:"correlation_key,omitempty"`
	Reason          string     `json:"reason"`
	SubmissionID    *uuid.UUID `json:"submission_id,omitempty"`
	ExternalOrderID *string    `json:"external_order_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Applied reports whether this entry actually moved money.
func (t *Transaction) Applied() bool {
	return t.Type == TransactionTypeCredit || t.Type == TransactionTypeDebit
}

// DebitCorrelationKey builds the dedup key guarding a purchase debit
// against duplicate client requests for the same submission.
func DebitCorrelationKey(submissionID uuid.UUID) string {
	return "sub:" + submissionID.String()
}
