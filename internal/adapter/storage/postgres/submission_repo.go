package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"retailer-portal/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SubmissionRepo implements ports.SubmissionRepository. Form data,
// documents and status history are stored as JSONB; history mutations
// append server-side so concurrent writers never lose entries.
type SubmissionRepo struct {
	pool Pool
}

// NewSubmissionRepo creates a new SubmissionRepo.
func NewSubmissionRepo(pool Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

const submissionColumns = `id, retailer_id, service_id, sub_service_id, option_id, form_data, documents,
		amount, payment_method, payment_status, status, payment_order_id, status_history, admin_remarks,
		created_at, updated_at`

// Create inserts a new submission within a database transaction.
func (r *SubmissionRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.Submission) error {
	formData, err := json.Marshal(s.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}
	documents, err := json.Marshal(s.Documents)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	history, err := json.Marshal(s.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}

	query := `INSERT INTO submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = tx.Exec(ctx, query,
		s.ID, s.RetailerID, s.ServiceID, s.SubServiceID, s.OptionID, formData, documents,
		s.Amount, s.PaymentMethod, s.PaymentStatus, s.Status, s.PaymentOrderID, history, s.AdminRemarks,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission by UUID.
func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

	return scanSubmission(r.pool.QueryRow(ctx, query, id))
}

// GetByPaymentOrderID fetches a submission by its gateway order id.
func (r *SubmissionRepo) GetByPaymentOrderID(ctx context.Context, orderID string) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE payment_order_id = $1`

	return scanSubmission(r.pool.QueryRow(ctx, query, orderID))
}

// ListByRetailer fetches a retailer's submissions with pagination,
// newest first.
func (r *SubmissionRepo) ListByRetailer(ctx context.Context, retailerID uuid.UUID, page, pageSize int) ([]domain.Submission, int64, error) {
	countQuery := `SELECT COUNT(*) FROM submissions WHERE retailer_id = $1`
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, retailerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	offset := (page - 1) * pageSize
	dataQuery := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE retailer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, dataQuery, retailerID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		s, err := scanSubmissionRow(rows)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate submission rows: %w", err)
	}
	return subs, total, nil
}

// UpdatePayment sets the payment method, outcome and workflow status in
// one statement, appending the history entry server-side. The method is
// written every time so a retry that switches wallet/online leaves the
// stored record truthful. A nil paymentOrderID leaves the stored order
// id untouched.
func (r *SubmissionRepo) UpdatePayment(ctx context.Context, tx pgx.Tx, id uuid.UUID, method domain.PaymentMethod, ps domain.PaymentStatus, status domain.SubmissionStatus, paymentOrderID *string, entry domain.StatusEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal status entry: %w", err)
	}

	query := `UPDATE submissions
		SET payment_method = $1, payment_status = $2, status = $3,
			payment_order_id = COALESCE($4, payment_order_id),
			status_history = status_history || $5::jsonb,
			updated_at = NOW()
		WHERE id = $6`

	tag, err := tx.Exec(ctx, query, method, ps, status, paymentOrderID, entryJSON, id)
	if err != nil {
		return fmt.Errorf("update submission payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}
	return nil
}

// SetPaymentOrder stores the gateway order id once the order exists.
// No history entry: the submission is already payment-pending.
func (r *SubmissionRepo) SetPaymentOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID, orderID string) error {
	query := `UPDATE submissions
		SET payment_order_id = $1, updated_at = NOW()
		WHERE id = $2`

	tag, err := tx.Exec(ctx, query, orderID, id)
	if err != nil {
		return fmt.Errorf("set submission payment order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}
	return nil
}

// UpdateStatus changes the workflow status only, appending the history
// entry. A nil adminRemarks leaves the stored remarks untouched.
func (r *SubmissionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.SubmissionStatus, adminRemarks *string, entry domain.StatusEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal status entry: %w", err)
	}

	query := `UPDATE submissions
		SET status = $1,
			admin_remarks = COALESCE($2, admin_remarks),
			status_history = status_history || $3::jsonb,
			updated_at = NOW()
		WHERE id = $4`

	tag, err := tx.Exec(ctx, query, status, adminRemarks, entryJSON, id)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}
	return nil
}

// AppendDocuments adds files to the submission's document list and moves
// the workflow status per the history entry.
func (r *SubmissionRepo) AppendDocuments(ctx context.Context, tx pgx.Tx, id uuid.UUID, files []string, entry domain.StatusEntry) error {
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal status entry: %w", err)
	}

	query := `UPDATE submissions
		SET documents = documents || $1::jsonb,
			status = $2,
			status_history = status_history || $3::jsonb,
			updated_at = NOW()
		WHERE id = $4`

	tag, err := tx.Exec(ctx, query, filesJSON, entry.Status, entryJSON, id)
	if err != nil {
		return fmt.Errorf("append submission documents: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}
	return nil
}

// scanSubmission scans a single row, translating no-rows to nil.
func scanSubmission(row pgx.Row) (*domain.Submission, error) {
	s, err := scanSubmissionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func scanSubmissionRow(row pgx.Row) (*domain.Submission, error) {
	s := &domain.Submission{}
	var formData, documents, history []byte
	err := row.Scan(
		&s.ID, &s.RetailerID, &s.ServiceID, &s.SubServiceID, &s.OptionID, &formData, &documents,
		&s.Amount, &s.PaymentMethod, &s.PaymentStatus, &s.Status, &s.PaymentOrderID, &history, &s.AdminRemarks,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}

	if err := json.Unmarshal(formData, &s.FormData); err != nil {
		return nil, fmt.Errorf("unmarshal form data: %w", err)
	}
	if err := json.Unmarshal(documents, &s.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	if err := json.Unmarshal(history, &s.StatusHistory); err != nil {
		return nil, fmt.Errorf("unmarshal status history: %w", err)
	}
	return s, nil
}
