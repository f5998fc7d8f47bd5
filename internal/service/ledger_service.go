package service

import (
	"context"
	"fmt"
	"time"

	"retailer-portal/internal/core/domain"
	"retailer-portal/internal/core/ports"
	"retailer-portal/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService. Every balance
// mutation goes through here: the wallet row is locked FOR UPDATE, the
// sufficient-funds check, the balance write and the ledger entry all
// happen on the caller's pgx transaction. Two concurrent debits on one
// wallet therefore serialize on the row lock and can never drive the
// balance negative.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		log:        log,
	}
}

// GetOrCreateWallet returns the retailer's wallet, creating an empty one
// on first touch.
func (s *LedgerServiceImpl) GetOrCreateWallet(ctx context.Context, retailerID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByRetailerID(ctx, retailerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err = s.lockOrCreateWallet(ctx, dbTx, retailerID)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return wallet, nil
}

// Debit takes funds from the retailer's wallet inside the caller's
// transaction. A repeated correlation key returns the previously applied
// transaction without touching the balance, so duplicate purchase
// requests (client retry on timeout) charge at most once.
func (s *LedgerServiceImpl) Debit(ctx context.Context, tx pgx.Tx, req ports.DebitRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.lockOrCreateWallet(ctx, tx, req.RetailerID)
	if err != nil {
		return nil, err
	}

	if req.CorrelationKey != "" {
		prior, err := s.txRepo.GetByCorrelationKey(ctx, tx, req.CorrelationKey)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("correlation lookup: %w", err))
		}
		if prior != nil {
			s.log.Info().
				Str("correlation_key", req.CorrelationKey).
				Str("tx_id", prior.ID.String()).
				Msg("duplicate debit request, returning prior transaction")
			return prior, nil
		}
	}

	if wallet.Balance < req.Amount {
		return nil, apperror.ErrInsufficientFunds()
	}

	newBalance := wallet.Balance - req.Amount
	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	txn := s.newTransaction(wallet, domain.TransactionTypeDebit, req.Amount, newBalance, req.CorrelationKey, req.Reason, req.SubmissionID, nil)
	if err := s.txRepo.Create(ctx, tx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("retailer_id", req.RetailerID.String()).
		Int64("amount", req.Amount).
		Int64("balance", newBalance).
		Msg("wallet debited")

	return txn, nil
}

// Credit adds funds inside the caller's transaction. A repeated
// correlation key returns the previously applied transaction; a credit
// without a key carries no dedup guard and always applies.
func (s *LedgerServiceImpl) Credit(ctx context.Context, tx pgx.Tx, req ports.CreditRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.lockOrCreateWallet(ctx, tx, req.RetailerID)
	if err != nil {
		return nil, err
	}

	if req.CorrelationKey != "" {
		prior, err := s.txRepo.GetByCorrelationKey(ctx, tx, req.CorrelationKey)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("correlation lookup: %w", err))
		}
		if prior != nil {
			s.log.Info().
				Str("correlation_key", req.CorrelationKey).
				Str("tx_id", prior.ID.String()).
				Msg("duplicate credit request, returning prior transaction")
			return prior, nil
		}
	}

	newBalance := wallet.Balance + req.Amount
	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	txn := s.newTransaction(wallet, domain.TransactionTypeCredit, req.Amount, newBalance, req.CorrelationKey, req.Reason, req.SubmissionID, req.ExternalOrderID)
	if err := s.txRepo.Create(ctx, tx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("retailer_id", req.RetailerID.String()).
		Int64("amount", req.Amount).
		Int64("balance", newBalance).
		Msg("wallet credited")

	return txn, nil
}

// ManualCredit applies an administrator adjustment in its own
// transaction. An admin-supplied reference becomes the correlation key,
// so a double-submitted adjustment form applies once.
func (s *LedgerServiceImpl) ManualCredit(ctx context.Context, req ports.CreditRequest) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.Credit(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return txn, nil
}

// CreditOnce applies a credit exactly once per correlation key. The
// lookup runs after the wallet row is locked, so a duplicate gateway
// callback racing this call observes the first settlement and applies
// nothing.
func (s *LedgerServiceImpl) CreditOnce(ctx context.Context, tx pgx.Tx, req ports.CreditRequest) (*domain.Transaction, bool, error) {
	if req.Amount <= 0 {
		return nil, false, apperror.ErrInvalidAmount()
	}
	if req.CorrelationKey == "" {
		return nil, false, apperror.InternalError(fmt.Errorf("credit without correlation key"))
	}

	wallet, err := s.lockOrCreateWallet(ctx, tx, req.RetailerID)
	if err != nil {
		return nil, false, err
	}

	prior, err := s.txRepo.GetByCorrelationKey(ctx, tx, req.CorrelationKey)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("correlation lookup: %w", err))
	}
	if prior != nil {
		s.log.Info().
			Str("correlation_key", req.CorrelationKey).
			Str("tx_id", prior.ID.String()).
			Msg("settlement already applied, skipping credit")
		return prior, false, nil
	}

	newBalance := wallet.Balance + req.Amount
	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	txn := s.newTransaction(wallet, domain.TransactionTypeCredit, req.Amount, newBalance, req.CorrelationKey, req.Reason, req.SubmissionID, req.ExternalOrderID)
	if err := s.txRepo.Create(ctx, tx, txn); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("retailer_id", req.RetailerID.String()).
		Int64("amount", req.Amount).
		Int64("balance", newBalance).
		Msg("wallet credited")

	return txn, true, nil
}

// RecordFailedDebit writes an audit-only FAILED entry for a refused
// debit. Balance snapshots are equal on both sides; no money moves.
func (s *LedgerServiceImpl) RecordFailedDebit(ctx context.Context, tx pgx.Tx, req ports.DebitRequest) (*domain.Transaction, error) {
	wallet, err := s.lockOrCreateWallet(ctx, tx, req.RetailerID)
	if err != nil {
		return nil, err
	}

	txn := s.newTransaction(wallet, domain.TransactionTypeFailed, req.Amount, wallet.Balance, "", req.Reason, req.SubmissionID, nil)
	if err := s.txRepo.Create(ctx, tx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create failed transaction: %w", err))
	}
	return txn, nil
}

// ListTransactions returns the retailer's ledger history, newest first.
func (s *LedgerServiceImpl) ListTransactions(ctx context.Context, retailerID uuid.UUID, page, pageSize int) ([]domain.Transaction, int64, error) {
	wallet, err := s.walletRepo.GetByRetailerID(ctx, retailerID)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return []domain.Transaction{}, 0, nil
	}
	txns, total, err := s.txRepo.ListByWallet(ctx, wallet.ID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

// lockOrCreateWallet locks the retailer's wallet row, creating the
// wallet first if this is the retailer's first ledger touch. The unique
// index on retailer_id resolves a concurrent first-touch race.
func (s *LedgerServiceImpl) lockOrCreateWallet(ctx context.Context, tx pgx.Tx, retailerID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByRetailerIDForUpdate(ctx, tx, retailerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	wallet = domain.NewWallet(retailerID)
	if err := s.walletRepo.Create(ctx, tx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}
	s.log.Info().Str("retailer_id", retailerID.String()).Msg("wallet created on first use")
	return wallet, nil
}

func (s *LedgerServiceImpl) newTransaction(
	wallet *domain.Wallet,
	txType domain.TransactionType,
	amount, newBalance int64,
	correlationKey, reason string,
	submissionID *uuid.UUID,
	externalOrderID *string,
) *domain.Transaction {
	txn := &domain.Transaction{
		ID:              uuid.New(),
		WalletID:        wallet.ID,
		Type:            txType,
		Amount:          amount,
		PreviousBalance: wallet.Balance,
		UpdatedBalance:  newBalance,
		Reason:          reason,
		SubmissionID:    submissionID,
		ExternalOrderID: externalOrderID,
		CreatedAt:       time.Now().UTC(),
	}
	if correlationKey != "" {
		txn.CorrelationKey = &correlationKey
	}
	return txn
}
