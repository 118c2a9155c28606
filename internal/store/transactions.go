package store

import (
	"context"
	"time"

	"marketplace-service/internal/models"
)

// CreateTransaction inserts an audit entry
func (s *Store) CreateTransaction(ctx context.Context, txn *models.AuditTransaction) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO audit_transactions (id, user_id, product_id, amount, status, payment_method,
			payment_details, notes, created_at, completed_at)
		VALUES (:id, :user_id, :product_id, :amount, :status, :payment_method,
			:payment_details, :notes, :created_at, :completed_at)`, txn)
	return err
}

// ListTransactions retrieves audit entries newest first
func (s *Store) ListTransactions(ctx context.Context, userID string) ([]models.AuditTransaction, error) {
	txns := []models.AuditTransaction{}
	if userID == "" {
		err := s.db.SelectContext(ctx, &txns,
			"SELECT * FROM audit_transactions ORDER BY created_at DESC, id DESC")
		return txns, err
	}
	err := s.db.SelectContext(ctx, &txns,
		"SELECT * FROM audit_transactions WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	return txns, err
}

// UpdateTransaction changes the status of an audit entry
func (s *Store) UpdateTransaction(ctx context.Context, id string, status models.TransactionStatus, notes string, completedAt *time.Time) (*models.AuditTransaction, error) {
	var txn models.AuditTransaction
	err := s.db.GetContext(ctx, &txn, `
		UPDATE audit_transactions
		SET status = $1,
			notes = COALESCE(NULLIF($2, ''), notes),
			completed_at = COALESCE($3, completed_at)
		WHERE id = $4
		RETURNING *`, string(status), notes, completedAt, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &txn, nil
}

// DeleteTransactions clears the audit log
func (s *Store) DeleteTransactions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM audit_transactions")
	return err
}
