package service

import (
	"context"
	"errors"
	"fmt"

	"retailer-portal/internal/core/domain"
	"retailer-portal/internal/core/ports"
	"retailer-portal/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SubmissionServiceImpl implements ports.SubmissionService: it chooses
// the payment path, drives the submission state machine, and keeps
// ledger and submission consistent within one database transaction.
// Payment failures become persisted submission state, not opaque errors:
// the retailer must always be able to see what happened to their money.
type SubmissionServiceImpl struct {
	subRepo     ports.SubmissionRepository
	catalog     ports.CatalogRepository
	ledger      ports.LedgerService
	gateway     ports.PaymentGateway
	transactor  ports.DBTransactor
	redirectURL string
	log         zerolog.Logger
}

// NewSubmissionService creates a new SubmissionServiceImpl.
func NewSubmissionService(
	subRepo ports.SubmissionRepository,
	catalog ports.CatalogRepository,
	ledger ports.LedgerService,
	gateway ports.PaymentGateway,
	transactor ports.DBTransactor,
	redirectURL string,
	log zerolog.Logger,
) *SubmissionServiceImpl {
	return &SubmissionServiceImpl{
		subRepo:     subRepo,
		catalog:     catalog,
		ledger:      ledger,
		gateway:     gateway,
		transactor:  transactor,
		redirectURL: redirectURL,
		log:         log,
	}
}

// Purchase starts one submission for a catalog option. The option price
// is read fresh and frozen into the submission; it is never recomputed
// afterwards.
func (s *SubmissionServiceImpl) Purchase(ctx context.Context, req ports.PurchaseRequest) (*ports.PurchaseResult, error) {
	option, err := s.catalog.GetOptionByID(ctx, req.OptionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve option: %w", err))
	}
	if option == nil {
		return nil, apperror.ErrNotFound("option")
	}
	if !option.IsActive {
		return nil, apperror.ErrOptionNotPurchasable("option is inactive")
	}
	if option.IsExternal {
		return nil, apperror.ErrOptionNotPurchasable("external options are completed off-platform")
	}

	sub := newSubmission(req, option)

	switch req.PaymentMethod {
	case domain.PaymentMethodWallet:
		if err := s.settleWithWallet(ctx, sub, true); err != nil {
			return nil, err
		}
		return &ports.PurchaseResult{Submission: sub}, nil

	case domain.PaymentMethodOnline:
		return s.startOnlinePayment(ctx, sub, true)

	default:
		return nil, apperror.Validation(fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}
}

// RetryPayment re-runs the payment branch for a submission whose payment
// has not succeeded, reusing the frozen amount. Retrying an already-paid
// submission is rejected before any mutation: that is how a double
// charge is prevented. Completed and rejected submissions are closed to
// retries for the same reason re-uploads refuse them.
func (s *SubmissionServiceImpl) RetryPayment(ctx context.Context, retailerID, submissionID uuid.UUID, method domain.PaymentMethod) (*ports.PurchaseResult, error) {
	sub, err := s.getOwned(ctx, retailerID, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.PaymentStatus == domain.PaymentStatusPaid {
		return nil, apperror.ErrInvalidTransition("submission is already paid")
	}
	if sub.Status.IsTerminal() {
		return nil, apperror.ErrInvalidTransition(fmt.Sprintf("submission is %s", sub.Status))
	}

	sub.PaymentMethod = method

	switch method {
	case domain.PaymentMethodWallet:
		if err := s.settleWithWallet(ctx, sub, false); err != nil {
			return nil, err
		}
		return &ports.PurchaseResult{Submission: sub}, nil

	case domain.PaymentMethodOnline:
		return s.startOnlinePayment(ctx, sub, false)

	default:
		return nil, apperror.Validation(fmt.Sprintf("unknown payment method %q", method))
	}
}

// ReUploadDocuments appends documents and moves the submission to
// documents-re-uploaded. Allowed in any non-terminal state.
func (s *SubmissionServiceImpl) ReUploadDocuments(ctx context.Context, retailerID, submissionID uuid.UUID, files []string) (*domain.Submission, error) {
	sub, err := s.getOwned(ctx, retailerID, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status.IsTerminal() {
		return nil, apperror.ErrInvalidTransition(fmt.Sprintf("submission is %s", sub.Status))
	}
	if len(files) == 0 {
		return nil, apperror.Validation("no documents provided")
	}

	entry := domain.NewStatusEntry(domain.StatusDocumentsReUploaded, "Documents re-uploaded by retailer", domain.ActorRetailer, &retailerID)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.subRepo.AppendDocuments(ctx, dbTx, sub.ID, files, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append documents: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	sub.Documents = append(sub.Documents, files...)
	sub.Status = domain.StatusDocumentsReUploaded
	sub.StatusHistory = append(sub.StatusHistory, entry)
	return sub, nil
}

// AdminUpdateStatus moves a submission to any status. Administrators are
// trusted to correct stuck states, so the transition table is bypassed;
// the history entry is still appended, and amount/payment status are
// never touched.
func (s *SubmissionServiceImpl) AdminUpdateStatus(ctx context.Context, submissionID uuid.UUID, status domain.SubmissionStatus, remarks string, actorID uuid.UUID) (*domain.Submission, error) {
	sub, err := s.subRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get submission: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrSubmissionNotFound()
	}

	entry := domain.NewStatusEntry(status, remarks, domain.ActorAdmin, &actorID)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.subRepo.UpdateStatus(ctx, dbTx, sub.ID, status, &remarks, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update status: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("status", string(status)).
		Str("actor_id", actorID.String()).
		Msg("submission status updated by administrator")

	sub.Status = status
	sub.AdminRemarks = remarks
	sub.StatusHistory = append(sub.StatusHistory, entry)
	return sub, nil
}

// GetSubmission fetches one submission by id.
func (s *SubmissionServiceImpl) GetSubmission(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	sub, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get submission: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrSubmissionNotFound()
	}
	return sub, nil
}

// ListSubmissions returns a retailer's submissions, newest first.
func (s *SubmissionServiceImpl) ListSubmissions(ctx context.Context, retailerID uuid.UUID, page, pageSize int) ([]domain.Submission, int64, error) {
	subs, total, err := s.subRepo.ListByRetailer(ctx, retailerID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list submissions: %w", err))
	}
	return subs, total, nil
}

// settleWithWallet debits the wallet and finalizes the submission in a
// single database transaction. On insufficient funds the submission is
// still persisted, marked payment-failed, together with an audit FAILED
// ledger entry: the retailer sees the attempt and can retry.
// create selects between inserting a new submission (purchase) and
// updating an existing one (retry).
func (s *SubmissionServiceImpl) settleWithWallet(ctx context.Context, sub *domain.Submission, create bool) error {
	debitReq := ports.DebitRequest{
		RetailerID:     sub.RetailerID,
		Amount:         sub.Amount,
		CorrelationKey: domain.DebitCorrelationKey(sub.ID),
		Reason:         "Service purchase",
		SubmissionID:   &sub.ID,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	_, err = s.ledger.Debit(ctx, dbTx, debitReq)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == "LED_001" {
			_ = dbTx.Rollback(ctx)
			return s.persistFailedPayment(ctx, sub, create, debitReq, "Insufficient wallet balance")
		}
		return err
	}

	entry := domain.NewStatusEntry(domain.StatusPaid, "Paid from wallet", domain.ActorSystem, nil)
	sub.PaymentStatus = domain.PaymentStatusPaid
	sub.Status = domain.StatusPaid
	sub.StatusHistory = append(sub.StatusHistory, entry)

	if err := s.persistPaymentOutcome(ctx, dbTx, sub, create, nil, entry); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Int64("amount", sub.Amount).
		Msg("submission paid from wallet")
	return nil
}

// persistFailedPayment records the refused debit and the payment-failed
// submission state atomically.
func (s *SubmissionServiceImpl) persistFailedPayment(ctx context.Context, sub *domain.Submission, create bool, debitReq ports.DebitRequest, remarks string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.ledger.RecordFailedDebit(ctx, dbTx, debitReq); err != nil {
		return err
	}

	entry := domain.NewStatusEntry(domain.StatusPaymentFailed, remarks, domain.ActorSystem, nil)
	sub.PaymentStatus = domain.PaymentStatusFailed
	sub.Status = domain.StatusPaymentFailed
	sub.StatusHistory = append(sub.StatusHistory, entry)

	if err := s.persistPaymentOutcome(ctx, dbTx, sub, create, nil, entry); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Warn().
		Str("submission_id", sub.ID.String()).
		Int64("amount", sub.Amount).
		Msg("wallet payment failed, submission preserved for retry")
	return nil
}

// startOnlinePayment persists the submission as payment-pending, then
// asks the gateway for an order. Any gateway failure (timeout, transport
// error, rejection) marks the submission payment-failed with the
// provider's message captured verbatim in the history remarks.
func (s *SubmissionServiceImpl) startOnlinePayment(ctx context.Context, sub *domain.Submission, create bool) (*ports.PurchaseResult, error) {
	pendingEntry := domain.NewStatusEntry(domain.StatusPaymentPending, "Awaiting online payment", domain.ActorSystem, nil)
	sub.PaymentStatus = domain.PaymentStatusPending
	sub.Status = domain.StatusPaymentPending
	sub.StatusHistory = append(sub.StatusHistory, pendingEntry)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.persistPaymentOutcome(ctx, dbTx, sub, create, nil, pendingEntry); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	orderRef := domain.NewSubmissionOrderRef(sub.ID, sub.RetailerID)
	orderID := orderRef.String()

	order, err := s.gateway.CreateOrder(ctx, ports.GatewayOrderRequest{
		OrderID:     orderID,
		Amount:      sub.Amount,
		CustomerID:  sub.RetailerID.String(),
		RedirectURL: s.redirectURL,
	})
	if err != nil {
		return s.failOnlinePayment(ctx, sub, err)
	}

	// The submission is already payment-pending; the order id is the only
	// new fact, so no second history entry is written.
	if err := s.setPaymentOrder(ctx, sub.ID, orderID); err != nil {
		return nil, err
	}
	sub.PaymentOrderID = &orderID

	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("order_id", orderID).
		Msg("gateway order created for submission")

	return &ports.PurchaseResult{Submission: sub, PaymentURL: order.PaymentURL}, nil
}

// failOnlinePayment marks the submission payment-failed after a gateway
// error. The gateway's message is kept verbatim for support diagnosis.
func (s *SubmissionServiceImpl) failOnlinePayment(ctx context.Context, sub *domain.Submission, gatewayErr error) (*ports.PurchaseResult, error) {
	s.log.Error().
		Err(gatewayErr).
		Str("submission_id", sub.ID.String()).
		Msg("gateway order creation failed")

	entry := domain.NewStatusEntry(domain.StatusPaymentFailed, gatewayErr.Error(), domain.ActorSystem, nil)
	if err := s.updatePayment(ctx, sub.ID, sub.PaymentMethod, domain.PaymentStatusFailed, domain.StatusPaymentFailed, nil, entry); err != nil {
		return nil, err
	}
	sub.PaymentStatus = domain.PaymentStatusFailed
	sub.Status = domain.StatusPaymentFailed
	sub.StatusHistory = append(sub.StatusHistory, entry)

	return &ports.PurchaseResult{Submission: sub}, nil
}

func (s *SubmissionServiceImpl) updatePayment(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, ps domain.PaymentStatus, status domain.SubmissionStatus, orderID *string, entry domain.StatusEntry) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.subRepo.UpdatePayment(ctx, dbTx, id, method, ps, status, orderID, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("update payment: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *SubmissionServiceImpl) setPaymentOrder(ctx context.Context, id uuid.UUID, orderID string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.subRepo.SetPaymentOrder(ctx, dbTx, id, orderID); err != nil {
		return apperror.InternalError(fmt.Errorf("set payment order: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// persistPaymentOutcome writes the submission on the given transaction,
// inserting or updating depending on whether this is a fresh purchase.
func (s *SubmissionServiceImpl) persistPaymentOutcome(ctx context.Context, tx pgx.Tx, sub *domain.Submission, create bool, orderID *string, entry domain.StatusEntry) error {
	if create {
		if err := s.subRepo.Create(ctx, tx, sub); err != nil {
			return apperror.InternalError(fmt.Errorf("create submission: %w", err))
		}
		return nil
	}
	if err := s.subRepo.UpdatePayment(ctx, tx, sub.ID, sub.PaymentMethod, sub.PaymentStatus, sub.Status, orderID, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("update submission: %w", err))
	}
	return nil
}

func (s *SubmissionServiceImpl) getOwned(ctx context.Context, retailerID, submissionID uuid.UUID) (*domain.Submission, error) {
	sub, err := s.subRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get submission: %w", err))
	}
	// Ownership mismatch reads the same as absence: ids are not probeable.
	if sub == nil || sub.RetailerID != retailerID {
		return nil, apperror.ErrSubmissionNotFound()
	}
	return sub, nil
}

func newSubmission(req ports.PurchaseRequest, option *domain.ServiceOption) *domain.Submission {
	id := uuid.New()
	created := domain.NewStatusEntry(domain.StatusCreated, "Submission created", domain.ActorRetailer, &req.RetailerID)
	return &domain.Submission{
		ID:            id,
		RetailerID:    req.RetailerID,
		ServiceID:     option.ServiceID,
		SubServiceID:  option.SubServiceID,
		OptionID:      option.ID,
		FormData:      req.FormData,
		Documents:     req.Documents,
		Amount:        option.RetailerPrice,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.StatusCreated,
		StatusHistory: []domain.StatusEntry{created},
		CreatedAt:     created.At,
		UpdatedAt:     created.At,
	}
}
