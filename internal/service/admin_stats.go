package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

const defaultRecentTransactions = 5

// AdminStatsService collects the audit log and builds the admin dashboard
type AdminStatsService struct {
	txns        store.TransactionRepository
	listings    store.ListingRepository
	recentLimit int
	logger      *zap.Logger
	now         func() time.Time
}

// NewAdminStatsService creates a new admin stats collector
func NewAdminStatsService(txns store.TransactionRepository, listings store.ListingRepository, recentLimit int) *AdminStatsService {
	if recentLimit <= 0 {
		recentLimit = defaultRecentTransactions
	}
	return &AdminStatsService{
		txns:        txns,
		listings:    listings,
		recentLimit: recentLimit,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// RecordTransaction appends an entry to the audit log
func (a *AdminStatsService) RecordTransaction(ctx context.Context, entry models.AuditTransaction) (*models.AuditTransaction, error) {
	if entry.Status == "" {
		entry.Status = models.TransactionStatusPending
	}
	if !entry.Status.Valid() {
		return nil, &models.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown transaction status %q", entry.Status)}
	}
	if entry.UserID == "" {
		return nil, &models.ValidationError{Field: "user_id", Reason: "is required"}
	}

	entry.ID = newID()
	entry.CreatedAt = a.now()

	if err := a.txns.CreateTransaction(ctx, &entry); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	util.AuditTransactionsTotal.WithLabelValues(string(entry.Status)).Inc()
	a.logger.Info("Audit transaction recorded",
		zap.String("transaction_id", entry.ID),
		zap.String("user_id", entry.UserID),
		zap.String("product_id", entry.ProductID),
		zap.Float64("amount", entry.Amount))

	return &entry, nil
}

// Transactions returns the whole audit log newest first
func (a *AdminStatsService) Transactions(ctx context.Context) ([]models.AuditTransaction, error) {
	return a.txns.ListTransactions(ctx, "")
}

// UserTransactions returns one user's audit entries newest first
func (a *AdminStatsService) UserTransactions(ctx context.Context, userID string) ([]models.AuditTransaction, error) {
	return a.txns.ListTransactions(ctx, userID)
}

// UpdateTransactionStatus changes an entry's status; completion is timestamped
func (a *AdminStatsService) UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus, notes string) (*models.AuditTransaction, error) {
	if !status.Valid() {
		return nil, &models.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown transaction status %q", status)}
	}

	var completedAt *time.Time
	if status == models.TransactionStatusCompleted {
		now := a.now()
		completedAt = &now
	}

	txn, err := a.txns.UpdateTransaction(ctx, id, status, notes, completedAt)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", id, err)
	}
	return txn, nil
}

// ClearTransactions empties the audit log
func (a *AdminStatsService) ClearTransactions(ctx context.Context) error {
	if err := a.txns.DeleteTransactions(ctx); err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}
	a.logger.Warn("Audit log cleared")
	return nil
}

// Stats builds the admin dashboard summary
func (a *AdminStatsService) Stats(ctx context.Context) (*models.AdminStats, error) {
	ctx, span := util.StartSpan(ctx, "AdminStatsService.Stats")
	defer span.End()

	all, err := a.listings.ListListings(ctx, models.ListingFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	txns, err := a.txns.ListTransactions(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	stats := &models.AdminStats{
		TotalListings:     len(all),
		PendingModeration: make([]models.Listing, 0),
	}
	for _, l := range all {
		if l.Status == models.ListingStatusPending {
			stats.PendingModeration = append(stats.PendingModeration, l)
		}
	}
	stats.PendingListings = len(stats.PendingModeration)

	for _, t := range txns {
		if t.Status == models.TransactionStatusCompleted {
			stats.TotalSales++
			stats.TotalRevenue += t.Amount
		}
	}

	recent := txns
	if len(recent) > a.recentLimit {
		recent = recent[:a.recentLimit]
	}
	stats.RecentTransactions = recent

	return stats, nil
}
