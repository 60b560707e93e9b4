package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/painel-dev/painel/internal/database"
	"github.com/painel-dev/painel/internal/models"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "painel.sqlite"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seed stores two products with history across April and May 2024
func seed(t *testing.T, db *gorm.DB) {
	t.Helper()

	widget := &models.Product{ProductCode: "P-001", ProductName: "Widget"}
	gadget := &models.Product{ProductCode: "P-002", ProductName: "Gadget"}
	require.NoError(t, db.Create(widget).Error)
	require.NoError(t, db.Create(gadget).Error)

	history := []models.ProductHistory{
		{ProductID: widget.ID, Date: day(2024, 5, 31), SoldQuantity: 40, InboundQuantity: 5, ClosingStock: 20},
		{ProductID: widget.ID, Date: day(2024, 4, 30), SoldQuantity: 30, InboundQuantity: 10, ClosingStock: 60},
		{ProductID: gadget.ID, Date: day(2024, 5, 31), SoldQuantity: 2, ClosingStock: 8},
	}
	require.NoError(t, db.Create(&history).Error)
}

func TestGetProductByCode(t *testing.T) {
	db := openDB(t)
	seed(t, db)
	svc := NewService(db, 0, zerolog.Nop())

	product, err := svc.GetProductByCode(context.Background(), "P-001")
	require.NoError(t, err)
	require.Len(t, product.History, 2)
	assert.True(t, product.History[0].Date.Before(product.History[1].Date), "history is ordered by date")

	_, err = svc.GetProductByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGeneralKPIs(t *testing.T) {
	db := openDB(t)
	svc := NewService(db, 150, zerolog.Nop())

	kpis, err := svc.GeneralKPIs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &KPIs{SalesTarget: 150}, kpis, "empty database")

	seed(t, db)

	kpis, err = svc.GeneralKPIs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-05", kpis.Month)
	assert.Equal(t, float64(42), kpis.CurrentMonthSales)
	assert.Equal(t, int64(2), kpis.TotalProducts)
	assert.Equal(t, float64(150), kpis.SalesTarget)
}

func TestUsers(t *testing.T) {
	db := openDB(t)
	svc := NewService(db, 0, zerolog.Nop())
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "alice", "correct-pw")
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "correct-pw", user.PasswordHash)

	_, err = svc.CreateUser(ctx, "alice", "other")
	assert.ErrorIs(t, err, ErrUserExists)

	authenticated, err := svc.Authenticate(ctx, "alice", "correct-pw")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authenticated.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Authenticate(ctx, "nobody", "wrong")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.SetUserActive(ctx, "alice", false))
	_, err = svc.Authenticate(ctx, "alice", "correct-pw")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.SetUserActive(ctx, "nobody", false), ErrNotFound)
}

func TestQuery(t *testing.T) {
	db := openDB(t)
	seed(t, db)
	svc := NewService(db, 0, zerolog.Nop())
	ctx := context.Background()

	rows, err := svc.Query(ctx, Query{
		Start:      day(2024, 1, 1),
		End:        day(2024, 12, 31),
		Dimensions: []string{"month"},
		Metrics:    []string{"sold_quantity", "inbound_quantity", "records"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-04", rows[0]["month"])
	assert.EqualValues(t, 30, rows[0]["sold_quantity"])
	assert.Equal(t, "2024-05", rows[1]["month"])
	assert.EqualValues(t, 42, rows[1]["sold_quantity"])
	assert.EqualValues(t, 2, rows[1]["records"])

	// the end day is inclusive
	rows, err = svc.Query(ctx, Query{
		Start:      day(2024, 5, 31),
		End:        day(2024, 5, 31),
		Dimensions: []string{"product_name"},
		Metrics:    []string{"closing_stock"},
		Filters:    map[string]string{"product_code": "P-002", "year": " "},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Gadget", rows[0]["product_name"])
	assert.EqualValues(t, 8, rows[0]["closing_stock"])
}

func TestQuery_Invalid(t *testing.T) {
	db := openDB(t)
	svc := NewService(db, 0, zerolog.Nop())
	ctx := context.Background()

	valid := Query{Start: day(2024, 1, 1), End: day(2024, 2, 1), Dimensions: []string{"month"}, Metrics: []string{"records"}}

	tests := []struct {
		name   string
		mutate func(q *Query)
	}{
		{"no dimensions", func(q *Query) { q.Dimensions = nil }},
		{"no metrics", func(q *Query) { q.Metrics = nil }},
		{"unknown dimension", func(q *Query) { q.Dimensions = []string{"h.id"} }},
		{"unknown metric", func(q *Query) { q.Metrics = []string{"revenue"} }},
		{"unknown filter", func(q *Query) { q.Filters = map[string]string{"1=1 OR product_code": "x"} }},
		{"reversed range", func(q *Query) { q.End = day(2023, 1, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)
			_, err := svc.Query(ctx, q)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestListImportRuns(t *testing.T) {
	db := openDB(t)
	svc := NewService(db, 0, zerolog.Nop())

	for _, source := range []string{"csv:a.csv", "csv:b.csv", "postgres"} {
		require.NoError(t, db.Create(&models.ImportRun{Source: source, Status: models.ImportRunCompleted}).Error)
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := svc.ListImportRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "postgres", runs[0].Source)
	assert.Equal(t, "csv:b.csv", runs[1].Source)
}

func TestImportUser(t *testing.T) {
	db := openDB(t)
	svc := NewService(db, 0, zerolog.Nop())
	ctx := context.Background()

	existing, err := svc.CreateUser(ctx, "alice", "correct-pw")
	require.NoError(t, err)

	created, err := svc.ImportUser(ctx, "alice", "$2b$12$legacy", false)
	require.NoError(t, err)
	assert.False(t, created)

	user, err := svc.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, existing.PasswordHash, user.PasswordHash)
	assert.True(t, user.IsActive)

	created, err = svc.ImportUser(ctx, "bob", "$2b$12$legacy", false)
	require.NoError(t, err)
	assert.True(t, created)

	user, err = svc.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "$2b$12$legacy", user.PasswordHash)
	assert.False(t, user.IsActive)
}
