package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"retailer-portal/internal/core/domain"
	"retailer-portal/internal/core/ports"
	"retailer-portal/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const settlementCacheTTL = 24 * time.Hour

// GatewayStatusSuccess is the only gateway status that settles an order.
const GatewayStatusSuccess = "Success"

// SettlementServiceImpl implements ports.SettlementService: it starts
// wallet top-up orders at the gateway and reconciles order outcomes into
// the ledger exactly once per order id. Reconcile is safe to repeat
// (duplicate webhooks, retry timers) and safe to cancel: the idempotent
// credit check happens inside the same database transaction as the
// mutation, so no partial ledger state can survive.
type SettlementServiceImpl struct {
	ledger     ports.LedgerService
	subRepo    ports.SubmissionRepository
	gateway    ports.PaymentGateway
	transactor ports.DBTransactor
	cache      ports.SettlementCache
	log        zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	ledger ports.LedgerService,
	subRepo ports.SubmissionRepository,
	gateway ports.PaymentGateway,
	transactor ports.DBTransactor,
	cache ports.SettlementCache,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		ledger:     ledger,
		subRepo:    subRepo,
		gateway:    gateway,
		transactor: transactor,
		cache:      cache,
		log:        log,
	}
}

// InitiateTopUp asks the gateway for a wallet top-up order. The order id
// embeds the retailer id so reconciliation can recover it from the id
// alone.
func (s *SettlementServiceImpl) InitiateTopUp(ctx context.Context, retailerID uuid.UUID, amount int64) (*ports.TopUpResult, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	ref := domain.NewTopUpOrderRef(retailerID)
	orderID := ref.String()

	order, err := s.gateway.CreateOrder(ctx, ports.GatewayOrderRequest{
		OrderID:    orderID,
		Amount:     amount,
		CustomerID: retailerID.String(),
	})
	if err != nil {
		// Nothing was persisted; a top-up has no submission to park the
		// failure in, so the error goes straight back to the retailer.
		return nil, err
	}

	s.log.Info().
		Str("retailer_id", retailerID.String()).
		Str("order_id", orderID).
		Int64("amount", amount).
		Msg("top-up order created")

	return &ports.TopUpResult{OrderID: orderID, PaymentURL: order.PaymentURL}, nil
}

// Reconcile checks the gateway's authoritative status for an order and
// applies the outcome locally exactly once. Unresolvable references fail
// closed: no credit is applied and the anomaly is surfaced for manual
// follow-up.
func (s *SettlementServiceImpl) Reconcile(ctx context.Context, rawOrderID string) (*ports.ReconcileResult, error) {
	ref, err := domain.ParseOrderRef(rawOrderID)
	if err != nil {
		s.log.Error().Err(err).Str("order_id", rawOrderID).Msg("unparseable order id, reconciliation refused")
		return nil, apperror.ErrUnresolvableOrderReference(err)
	}

	// Layer 1: Redis settlement check. The database correlation key
	// remains the source of truth; this only short-circuits repeats.
	if cached, err := s.cache.Get(ctx, rawOrderID); err != nil {
		s.log.Warn().Err(err).Str("order_id", rawOrderID).Msg("settlement cache check failed, falling through to gateway")
	} else if cached != nil {
		result := &ports.ReconcileResult{}
		if err := json.Unmarshal(cached, result); err == nil {
			result.Applied = false
			return result, nil
		}
	}

	status, err := s.gateway.CheckOrderStatus(ctx, rawOrderID)
	if err != nil {
		return nil, err
	}

	if status.Status != GatewayStatusSuccess {
		s.log.Info().
			Str("order_id", rawOrderID).
			Str("gateway_status", status.Status).
			Msg("order not settled at gateway, no ledger mutation")
		return &ports.ReconcileResult{OrderRef: ref, GatewayStatus: status.Status}, nil
	}

	if status.TxnAmount <= 0 {
		err := fmt.Errorf("gateway reported success with amount %d for order %q", status.TxnAmount, rawOrderID)
		s.log.Error().Err(err).Msg("refusing settlement")
		return nil, apperror.ErrUnresolvableOrderReference(err)
	}

	var result *ports.ReconcileResult
	switch ref.Kind {
	case domain.OrderKindTopUp:
		result, err = s.settleTopUp(ctx, ref, rawOrderID, status.TxnAmount)
	case domain.OrderKindSubmission:
		result, err = s.settleSubmission(ctx, ref, rawOrderID, status.TxnAmount)
	default:
		err = apperror.ErrUnresolvableOrderReference(fmt.Errorf("unknown order kind %q", ref.Kind))
	}
	if err != nil {
		return nil, err
	}

	// Best-effort cache write; the DB correlation key still protects a
	// replay that misses the cache.
	if payload, err := json.Marshal(result); err == nil {
		if err := s.cache.Set(ctx, rawOrderID, payload, settlementCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("order_id", rawOrderID).Msg("failed to cache settlement result")
		}
	}

	return result, nil
}

// settleTopUp credits the retailer's wallet once for a successful
// top-up order. The wallet is created lazily if this is the retailer's
// first credit.
func (s *SettlementServiceImpl) settleTopUp(ctx context.Context, ref domain.OrderRef, rawOrderID string, amount int64) (*ports.ReconcileResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, applied, err := s.ledger.CreditOnce(ctx, dbTx, ports.CreditRequest{
		RetailerID:      ref.RetailerID,
		Amount:          amount,
		CorrelationKey:  rawOrderID,
		Reason:          "Wallet top-up via payment gateway",
		ExternalOrderID: &rawOrderID,
	})
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("order_id", rawOrderID).
		Str("retailer_id", ref.RetailerID.String()).
		Bool("applied", applied).
		Msg("top-up reconciled")

	return &ports.ReconcileResult{
		OrderRef:      ref,
		GatewayStatus: GatewayStatusSuccess,
		Applied:       applied,
		Transaction:   txn,
	}, nil
}

// settleSubmission finalizes an online submission payment: the gateway
// credit, the matching purchase debit and the paid status all land in
// one database transaction. A duplicate delivery finds the credit
// already applied and changes nothing.
func (s *SettlementServiceImpl) settleSubmission(ctx context.Context, ref domain.OrderRef, rawOrderID string, amount int64) (*ports.ReconcileResult, error) {
	sub, err := s.subRepo.GetByID(ctx, ref.SubmissionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get submission: %w", err))
	}
	if sub == nil {
		// The id embedded in the order is the primary path; the stored
		// payment order id is the fallback.
		sub, err = s.subRepo.GetByPaymentOrderID(ctx, rawOrderID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get submission by order id: %w", err))
		}
	}
	if sub == nil {
		err := fmt.Errorf("no submission for order %q", rawOrderID)
		s.log.Error().Err(err).Msg("refusing settlement")
		return nil, apperror.ErrUnresolvableOrderReference(err)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	credit, applied, err := s.ledger.CreditOnce(ctx, dbTx, ports.CreditRequest{
		RetailerID:      ref.RetailerID,
		Amount:          amount,
		CorrelationKey:  rawOrderID,
		Reason:          "Online payment settlement",
		SubmissionID:    &sub.ID,
		ExternalOrderID: &rawOrderID,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		// Already settled by an earlier delivery; report the prior
		// outcome without touching anything.
		return &ports.ReconcileResult{
			OrderRef:      ref,
			GatewayStatus: GatewayStatusSuccess,
			Applied:       false,
			Transaction:   credit,
			Submission:    sub,
		}, nil
	}

	// Pair the settlement credit with the purchase debit so the wallet
	// nets to zero and the ledger shows the full money movement.
	if _, err := s.ledger.Debit(ctx, dbTx, ports.DebitRequest{
		RetailerID:     ref.RetailerID,
		Amount:         sub.Amount,
		CorrelationKey: domain.DebitCorrelationKey(sub.ID),
		Reason:         "Service purchase (online settlement)",
		SubmissionID:   &sub.ID,
	}); err != nil {
		return nil, err
	}

	// A settled gateway order is an online payment, whatever method the
	// submission was created with.
	entry := domain.NewStatusEntry(domain.StatusPaid, "Online payment confirmed by gateway", domain.ActorSystem, nil)
	if err := s.subRepo.UpdatePayment(ctx, dbTx, sub.ID, domain.PaymentMethodOnline, domain.PaymentStatusPaid, domain.StatusPaid, &rawOrderID, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update submission: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	sub.PaymentMethod = domain.PaymentMethodOnline
	sub.PaymentStatus = domain.PaymentStatusPaid
	sub.Status = domain.StatusPaid
	sub.PaymentOrderID = &rawOrderID
	sub.StatusHistory = append(sub.StatusHistory, entry)

	s.log.Info().
		Str("order_id", rawOrderID).
		Str("submission_id", sub.ID.String()).
		Int64("amount", amount).
		Msg("submission payment reconciled")

	return &ports.ReconcileResult{
		OrderRef:      ref,
		GatewayStatus: GatewayStatusSuccess,
		Applied:       true,
		Transaction:   credit,
		Submission:    sub,
	}, nil
}
