package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is how the retailer pays for a submission.
type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodOnline PaymentMethod = "online"
)

// PaymentStatus is the payment outcome of a submission.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// SubmissionStatus is the workflow state of a submission.
type SubmissionStatus string

const (
	StatusCreated             SubmissionStatus = "created"
	StatusPaymentPending      SubmissionStatus = "payment-pending"
	StatusPaymentFailed       SubmissionStatus = "payment-failed"
	StatusPaid                SubmissionStatus = "paid"
	StatusUnderReview         SubmissionStatus = "under-review"
	StatusDocumentsReUploaded SubmissionStatus = "documents-re-uploaded"
	StatusCompleted           SubmissionStatus = "completed"
	StatusRejected            SubmissionStatus = "rejected"
)

// transitions is the closed transition table. Administrators may bypass it;
// every other caller is held to it.
var transitions = map[SubmissionStatus][]SubmissionStatus{
	StatusCreated:             {StatusPaymentPending, StatusPaid, StatusPaymentFailed},
	StatusPaymentPending:      {StatusPaid, StatusPaymentFailed},
	StatusPaymentFailed:       {StatusPaymentPending, StatusPaid},
	StatusPaid:                {StatusUnderReview, StatusDocumentsReUploaded},
	StatusUnderReview:         {StatusCompleted, StatusRejected, StatusDocumentsReUploaded},
	StatusDocumentsReUploaded: {StatusUnderReview, StatusCompleted, StatusRejected},
}

// IsTerminal returns true once a submission can no longer change state.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// CanTransition reports whether the transition table allows from -> to.
func CanTransition(from, to SubmissionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActorRole identifies who drove a status change.
type ActorRole string

const (
	ActorRetailer ActorRole = "retailer"
	ActorAdmin    ActorRole = "admin"
	ActorSystem   ActorRole = "system"
)

// StatusEntry is one append-only record in a submission's status history.
// History is never edited or truncated; it is the source of truth for
// dispute resolution.
type StatusEntry struct {
	Status    SubmissionStatus `json:"status"`
	Remarks   string           `json:"remarks"`
	ActorRole ActorRole        `json:"actor_role"`
	ActorID   *uuid.UUID       `json:"actor_id,omitempty"`
	At        time.Time        `json:"at"`
}

// Submission is one purchase attempt by a retailer for a catalog option.
// Amount is snapshotted from the option price at creation and never
// recomputed. Submissions are never deleted (financial record).
type Submission struct {
	ID            uuid.UUID         `json:"id"`
	RetailerID    uuid.UUID         `json:"retailer_id"`
	ServiceID     uuid.UUID         `json:"service_id"`
	SubServiceID  uuid.UUID         `json:"sub_service_id"`
	OptionID      uuid.UUID         `json:"option_id"`
	FormData      map[string]string `json:"form_data"`
	Documents     []string          `json:"documents,omitempty"`
	Amount        int64             `json:"amount"` // Price snapshot, in paise
	PaymentMethod PaymentMethod     `json:"payment_method"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	Status        SubmissionStatus  `json:"status"`
	// PaymentOrderID correlates an online payment with the external
	// gateway; empty for pure wallet payments.
	PaymentOrderID *string       `json:"payment_order_id,omitempty"`
	StatusHistory  []StatusEntry `json:"status_history"`
	AdminRemarks   string        `json:"admin_remarks,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewStatusEntry builds a history entry stamped now.
func NewStatusEntry(status SubmissionStatus, remarks string, role ActorRole, actorID *uuid.UUID) StatusEntry {
	return StatusEntry{
		Status:    status,
		Remarks:   remarks,
		ActorRole: role,
		ActorID:   actorID,
		At:        time.Now().UTC(),
	}
}
