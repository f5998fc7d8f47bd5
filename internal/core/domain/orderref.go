package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderKind distinguishes the two flows that create gateway orders.
type OrderKind string

const (
	OrderKindSubmission OrderKind = "SUB"
	OrderKindTopUp      OrderKind = "WALLET"
)

// OrderRef is the parsed form of a gateway order id. The wire format is
// self-describing so reconciliation can recover the retailer (and
// submission, if any) from the id alone even if the primary lookup path
// is unavailable:
//
//	SUB_<submissionID>_<retailerID>_<unixms>
//	WALLET_<retailerID>_<unixms>
//
// The raw string must be parsed at the boundary and never propagated
// past it.
type OrderRef struct {
	Kind         OrderKind
	RetailerID   uuid.UUID
	SubmissionID uuid.UUID // Zero for top-up orders
	IssuedAt     time.Time
}

// NewSubmissionOrderRef mints an order ref for an online submission payment.
func NewSubmissionOrderRef(submissionID, retailerID uuid.UUID) OrderRef {
	return OrderRef{
		Kind:         OrderKindSubmission,
		RetailerID:   retailerID,
		SubmissionID: submissionID,
		IssuedAt:     time.Now().UTC(),
	}
}

// NewTopUpOrderRef mints an order ref for a wallet top-up.
func NewTopUpOrderRef(retailerID uuid.UUID) OrderRef {
	return OrderRef{
		Kind:       OrderKindTopUp,
		RetailerID: retailerID,
		IssuedAt:   time.Now().UTC(),
	}
}

// String renders the gateway wire format. The timestamp suffix makes
// retried order creation globally unique.
func (r OrderRef) String() string {
	ts := strconv.FormatInt(r.IssuedAt.UnixMilli(), 10)
	if r.Kind == OrderKindSubmission {
		return fmt.Sprintf("%s_%s_%s_%s", OrderKindSubmission, r.SubmissionID, r.RetailerID, ts)
	}
	return fmt.Sprintf("%s_%s_%s", OrderKindTopUp, r.RetailerID, ts)
}

// ParseOrderRef decodes a raw gateway order id. It fails closed: any
// malformed id is an error, never a best-effort guess.
func ParseOrderRef(raw string) (OrderRef, error) {
	parts := strings.Split(raw, "_")
	switch {
	case len(parts) == 4 && parts[0] == string(OrderKindSubmission):
		subID, err := uuid.Parse(parts[1])
		if err != nil {
			return OrderRef{}, fmt.Errorf("order id %q: bad submission id: %w", raw, err)
		}
		retailerID, err := uuid.Parse(parts[2])
		if err != nil {
			return OrderRef{}, fmt.Errorf("order id %q: bad retailer id: %w", raw, err)
		}
		ms, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			return OrderRef{}, fmt.Errorf("order id %q: bad timestamp: %w", raw, err)
		}
		return OrderRef{
			Kind:         OrderKindSubmission,
			RetailerID:   retailerID,
			SubmissionID: subID,
			IssuedAt:     time.UnixMilli(ms).UTC(),
		}, nil

	case len(parts) == 3 && parts[0] == string(OrderKindTopUp):
		retailerID, err := uuid.Parse(parts[1])
		if err != nil {
			return OrderRef{}, fmt.Errorf("order id %q: bad retailer id: %w", raw, err)
		}
		ms, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return OrderRef{}, fmt.Errorf("order id %q: bad timestamp: %w", raw, err)
		}
		return OrderRef{
			Kind:       OrderKindTopUp,
			RetailerID: retailerID,
			IssuedAt:   time.UnixMilli(ms).UTC(),
		}, nil
	}
	return OrderRef{}, fmt.Errorf("order id %q: unrecognized format", raw)
}
