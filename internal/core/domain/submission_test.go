package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    SubmissionStatus
		to      SubmissionStatus
		allowed bool
	}{
		{"created to payment-pending", StatusCreated, StatusPaymentPending, true},
		{"created to paid (wallet path)", StatusCreated, StatusPaid, true},
		{"created to payment-failed", StatusCreated, StatusPaymentFailed, true},
		{"payment-pending to paid", StatusPaymentPending, StatusPaid, true},
		{"payment-pending to payment-failed", StatusPaymentPending, StatusPaymentFailed, true},
		{"payment-failed to payment-pending (retry)", StatusPaymentFailed, StatusPaymentPending, true},
		{"payment-failed to paid (wallet retry)", StatusPaymentFailed, StatusPaid, true},
		{"paid to under-review", StatusPaid, StatusUnderReview, true},
		{"under-review to completed", StatusUnderReview, StatusCompleted, true},
		{"under-review to rejected", StatusUnderReview, StatusRejected, true},
		{"under-review to documents-re-uploaded", StatusUnderReview, StatusDocumentsReUploaded, true},
		{"documents-re-uploaded to under-review", StatusDocumentsReUploaded, StatusUnderReview, true},

		{"created to completed skips payment", StatusCreated, StatusCompleted, false},
		{"paid back to created", StatusPaid, StatusCreated, false},
		{"completed is terminal", StatusCompleted, StatusUnderReview, false},
		{"rejected is terminal", StatusRejected, StatusPaymentPending, false},
		{"payment-failed to under-review without paying", StatusPaymentFailed, StatusUnderReview, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestSubmissionStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())

	for _, s := range []SubmissionStatus{
		StatusCreated, StatusPaymentPending, StatusPaymentFailed,
		StatusPaid, StatusUnderReview, StatusDocumentsReUploaded,
	} {
		assert.False(t, s.IsTerminal(), string(s))
	}
}

func TestTerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	assert.Empty(t, transitions[StatusCompleted])
	assert.Empty(t, transitions[StatusRejected])
}
