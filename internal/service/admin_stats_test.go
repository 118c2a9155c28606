package service

import (
	"context"
	"fmt"
	"testing"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminStats_RecordAndStats(t *testing.T) {
	repo := store.NewMemoryStore()
	stats := NewAdminStatsService(repo, repo, 0)
	ctx := context.Background()

	amounts := []float64{10, 20, 30, 40, 50, 60}
	for i, amount := range amounts {
		_, err := stats.RecordTransaction(ctx, models.AuditTransaction{
			UserID:    "buyer",
			ProductID: fmt.Sprintf("p-%d", i),
			Amount:    amount,
			Status:    models.TransactionStatusCompleted,
		})
		require.NoError(t, err)
	}
	_, err := stats.RecordTransaction(ctx, models.AuditTransaction{UserID: "buyer", Amount: 999})
	require.NoError(t, err)

	summary, err := stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.TotalSales)
	assert.Equal(t, 210.0, summary.TotalRevenue)
	require.Len(t, summary.RecentTransactions, 5)
	assert.Equal(t, models.TransactionStatusPending, summary.RecentTransactions[0].Status)
	assert.Equal(t, "p-5", summary.RecentTransactions[1].ProductID)
	assert.NotNil(t, summary.PendingModeration)
}

func TestAdminStats_RecordValidation(t *testing.T) {
	repo := store.NewMemoryStore()
	stats := NewAdminStatsService(repo, repo, 3)
	ctx := context.Background()

	_, err := stats.RecordTransaction(ctx, models.AuditTransaction{Status: models.TransactionStatusCompleted})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = stats.RecordTransaction(ctx, models.AuditTransaction{UserID: "u", Status: "lost"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAdminStats_UpdateAndClear(t *testing.T) {
	repo := store.NewMemoryStore()
	stats := NewAdminStatsService(repo, repo, 0)
	ctx := context.Background()

	txn, err := stats.RecordTransaction(ctx, models.AuditTransaction{UserID: "u1", Amount: 15})
	require.NoError(t, err)
	assert.Nil(t, txn.CompletedAt)

	updated, err := stats.UpdateTransactionStatus(ctx, txn.ID, models.TransactionStatusCompleted, "confirmed by bank")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, updated.Status)
	assert.Equal(t, "confirmed by bank", updated.Notes)
	assert.NotNil(t, updated.CompletedAt)

	_, err = stats.UpdateTransactionStatus(ctx, "missing", models.TransactionStatusRefunded, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = stats.UpdateTransactionStatus(ctx, txn.ID, "lost", "")
	assert.ErrorIs(t, err, models.ErrValidation)

	mine, err := stats.UserTransactions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, stats.ClearTransactions(ctx))
	all, err := stats.Transactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
