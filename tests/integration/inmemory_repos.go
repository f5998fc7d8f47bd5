package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"retailer-portal/internal/core/domain"
	"retailer-portal/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet // keyed by retailer id
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[w.RetailerID]; ok {
		return fmt.Errorf("wallet already exists for retailer %s", w.RetailerID)
	}
	r.wallets[w.RetailerID] = w
	return nil
}

func (r *inMemoryWalletRepo) GetByRetailerID(ctx context.Context, retailerID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[retailerID]
	if !ok {
		return nil, nil
	}
	return w, nil
}

func (r *inMemoryWalletRepo) GetByRetailerIDForUpdate(ctx context.Context, tx pgx.Tx, retailerID uuid.UUID) (*domain.Wallet, error) {
	// Row locking is modeled by the transactor's global lock.
	return r.GetByRetailerID(ctx, retailerID)
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.ID == walletID {
			w.Balance = balance
			return nil
		}
	}
	return fmt.Errorf("wallet not found: %s", walletID)
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu      sync.RWMutex
	entries []*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.CorrelationKey != nil {
		for _, existing := range r.entries {
			if existing.CorrelationKey != nil && *existing.CorrelationKey == *t.CorrelationKey {
				return fmt.Errorf("duplicate correlation key %q", *t.CorrelationKey)
			}
		}
	}
	r.entries = append(r.entries, t)
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.entries {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) GetByCorrelationKey(ctx context.Context, tx pgx.Tx, key string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.entries {
		if t.CorrelationKey != nil && *t.CorrelationKey == key {
			return t, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.entries {
		if t.WalletID == walletID {
			result = append(result, *t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-Memory Submission Repo ---

type inMemorySubmissionRepo struct {
	mu          sync.RWMutex
	submissions map[uuid.UUID]*domain.Submission
}

func newInMemorySubmissionRepo() *inMemorySubmissionRepo {
	return &inMemorySubmissionRepo{submissions: make(map[uuid.UUID]*domain.Submission)}
}

func (r *inMemorySubmissionRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions[s.ID] = s
	return nil
}

func (r *inMemorySubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.submissions[id]
	if !ok {
		return nil, nil
	}
	return copySubmission(s), nil
}

// copySubmission returns a detached copy, mirroring the real repo which
// scans a fresh row: callers must not observe later store mutations.
func copySubmission(s *domain.Submission) *domain.Submission {
	cp := *s
	cp.Documents = append([]string(nil), s.Documents...)
	cp.StatusHistory = append([]domain.StatusEntry(nil), s.StatusHistory...)
	return &cp
}

func (r *inMemorySubmissionRepo) GetByPaymentOrderID(ctx context.Context, orderID string) (*domain.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.submissions {
		if s.PaymentOrderID != nil && *s.PaymentOrderID == orderID {
			return s, nil
		}
	}
	return nil, nil
}

func (r *inMemorySubmissionRepo) ListByRetailer(ctx context.Context, retailerID uuid.UUID, page, pageSize int) ([]domain.Submission, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Submission
	for _, s := range r.submissions {
		if s.RetailerID == retailerID {
			result = append(result, *s)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.Submission{}, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemorySubmissionRepo) UpdatePayment(ctx context.Context, tx pgx.Tx, id uuid.UUID, method domain.PaymentMethod, ps domain.PaymentStatus, status domain.SubmissionStatus, paymentOrderID *string, entry domain.StatusEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return fmt.Errorf("submission not found: %s", id)
	}
	s.PaymentMethod = method
	s.PaymentStatus = ps
	s.Status = status
	if paymentOrderID != nil {
		s.PaymentOrderID = paymentOrderID
	}
	s.StatusHistory = append(s.StatusHistory, entry)
	s.UpdatedAt = entry.At
	return nil
}

func (r *inMemorySubmissionRepo) SetPaymentOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return fmt.Errorf("submission not found: %s", id)
	}
	s.PaymentOrderID = &orderID
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemorySubmissionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.SubmissionStatus, adminRemarks *string, entry domain.StatusEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return fmt.Errorf("submission not found: %s", id)
	}
	s.Status = status
	if adminRemarks != nil {
		s.AdminRemarks = *adminRemarks
	}
	s.StatusHistory = append(s.StatusHistory, entry)
	s.UpdatedAt = entry.At
	return nil
}

func (r *inMemorySubmissionRepo) AppendDocuments(ctx context.Context, tx pgx.Tx, id uuid.UUID, files []string, entry domain.StatusEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return fmt.Errorf("submission not found: %s", id)
	}
	s.Documents = append(s.Documents, files...)
	s.Status = entry.Status
	s.StatusHistory = append(s.StatusHistory, entry)
	s.UpdatedAt = entry.At
	return nil
}

// --- In-Memory Catalog Repo ---

type inMemoryCatalogRepo struct {
	mu      sync.RWMutex
	options map[uuid.UUID]*domain.ServiceOption
}

func newInMemoryCatalogRepo() *inMemoryCatalogRepo {
	return &inMemoryCatalogRepo{options: make(map[uuid.UUID]*domain.ServiceOption)}
}

func (r *inMemoryCatalogRepo) add(o *domain.ServiceOption) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options[o.ID] = o
}

func (r *inMemoryCatalogRepo) GetOptionByID(ctx context.Context, id uuid.UUID) (*domain.ServiceOption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.options[id]
	if !ok {
		return nil, nil
	}
	return o, nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor models the database's row locking with one global
// mutex: Begin blocks until the previous transaction commits or rolls
// back. This preserves the serialization the services rely on for
// balance arithmetic.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &memTx{release: t.mu.Unlock}, nil
}

// memTx is a pgx.Tx whose only real behavior is releasing the
// transactor lock exactly once, on commit or rollback.
type memTx struct {
	once    sync.Once
	release func()
}

func (t *memTx) done() {
	t.once.Do(t.release)
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Commit(ctx context.Context) error          { t.done(); return nil }
func (t *memTx) Rollback(ctx context.Context) error        { t.done(); return nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }

// --- Fake Payment Gateway ---

// fakeGateway stands in for the external provider. Orders start out
// "Pending"; tests flip them with markPaid to simulate the retailer
// completing payment on the provider's site.
type fakeGateway struct {
	mu          sync.Mutex
	orders      map[string]int64 // order id -> amount
	status      map[string]string
	statusCalls int
	rejectMsg   string // non-empty makes CreateOrder fail
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		orders: make(map[string]int64),
		status: make(map[string]string),
	}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req ports.GatewayOrderRequest) (*ports.GatewayOrderResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rejectMsg != "" {
		return nil, fmt.Errorf("payment gateway rejected order: %s", g.rejectMsg)
	}
	g.orders[req.OrderID] = req.Amount
	g.status[req.OrderID] = "Pending"
	return &ports.GatewayOrderResponse{
		OrderID:    req.OrderID,
		PaymentURL: "https://gateway.test/pay/" + req.OrderID,
	}, nil
}

func (g *fakeGateway) CheckOrderStatus(ctx context.Context, orderID string) (*ports.GatewayStatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	st, ok := g.status[orderID]
	if !ok {
		st = "Not Found"
	}
	return &ports.GatewayStatusResponse{
		Status:    st,
		OrderID:   orderID,
		TxnAmount: g.orders[orderID],
	}, nil
}

func (g *fakeGateway) markPaid(orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status[orderID] = "Success"
}

func (g *fakeGateway) statusCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusCalls
}
