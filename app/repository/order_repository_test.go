package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackmine/storefront/app/models"
)

func newItemOrder() *models.Order {
	return &models.Order{
		Email:              "steve@example.com",
		Username:           "Steve",
		ExternalSessionRef: "cs_test_1",
		ProductType:        models.ProductTypeItem,
		ProductID:          "elytra",
		Amount:             2500,
		Status:             models.OrderStatusCompleted,
		LastEventRef:       "evt_1",
	}
}

func TestOrderCreateIfNotExistsInsertsOnce(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectExec("INSERT INTO `orders`.*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec("INSERT INTO `orders`.*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateIfNotExists(context.Background(), newItemOrder())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfNotExists(context.Background(), newItemOrder())
	require.NoError(t, err)
	assert.False(t, created, "duplicate session ref must be ignored")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecentCompleted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "email", "username", "external_session_ref", "product_type", "product_id", "amount", "status", "last_event_ref", "created_at"}).
		AddRow(2, "s@example.com", "Steve", "cs_2", "item", "beacon", 2000, "completed", "evt_2", now).
		AddRow(1, "s@example.com", "Steve", "cs_1", "item", "elytra", 2500, "completed", "evt_1", now.Add(-time.Hour))

	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE username = \\? AND status = \\? ORDER BY created_at DESC LIMIT").
		WillReturnRows(rows)

	orders, err := repo.ListRecentCompleted(context.Background(), "Steve", 5)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "beacon", orders[0].ProductID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
