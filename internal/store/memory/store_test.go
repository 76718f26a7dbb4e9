package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/restockd/restockd/internal/watch"
)

func product(id, url string) watch.Product {
	return watch.Product{
		ID:        id,
		Name:      "Item " + id,
		URL:       url,
		Status:    watch.StatusChecking,
		CreatedAt: time.Unix(1000, 0).UTC(),
	}
}

func TestCreateAndGetAllPreservesOrder(t *testing.T) {
	t.Parallel()

	s := NewProductStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, product("p1", "https://a.example.com")))
	require.NoError(t, s.Create(ctx, product("p2", "https://b.example.com")))
	require.NoError(t, s.Create(ctx, product("p3", "https://c.example.com")))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "p1", all[0].ID)
	require.Equal(t, "p2", all[1].ID)
	require.Equal(t, "p3", all[2].ID)
}

func TestCreateRejectsDuplicates(t *testing.T) {
	t.Parallel()

	s := NewProductStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, product("p1", "https://a.example.com")))
	require.Error(t, s.Create(ctx, product("p1", "https://other.example.com")))
	require.Error(t, s.Create(ctx, product("p2", "https://a.example.com")))
}

func TestUpdateAppliesPartialFields(t *testing.T) {
	t.Parallel()

	s := NewProductStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, product("p1", "https://a.example.com")))

	status := watch.StatusInStock
	confidence := watch.ConfidenceHigh
	checkedAt := time.Unix(2000, 0).UTC()
	require.NoError(t, s.Update(ctx, "p1", watch.ProductUpdate{
		Status:        &status,
		Confidence:    &confidence,
		Evidence:      []string{"add to cart"},
		LastCheckedAt: &checkedAt,
	}))

	got, err := s.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, watch.StatusInStock, got.Status)
	require.Equal(t, watch.ConfidenceHigh, got.Confidence)
	require.Equal(t, []string{"add to cart"}, got.Evidence)
	require.Equal(t, checkedAt, *got.LastCheckedAt)
	// Name untouched by a partial update.
	require.Equal(t, "Item p1", got.Name)

	// A later status-only update keeps the previous evidence.
	errStatus := watch.StatusError
	require.NoError(t, s.Update(ctx, "p1", watch.ProductUpdate{Status: &errStatus}))
	got, err = s.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, watch.StatusError, got.Status)
	require.Equal(t, []string{"add to cart"}, got.Evidence)
}

func TestUpdateUnknownProduct(t *testing.T) {
	t.Parallel()

	s := NewProductStore()
	status := watch.StatusInStock
	err := s.Update(context.Background(), "missing", watch.ProductUpdate{Status: &status})
	require.ErrorIs(t, err, watch.ErrProductNotFound)
}

func TestReadsReturnCopies(t *testing.T) {
	t.Parallel()

	s := NewProductStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, product("p1", "https://a.example.com")))

	status := watch.StatusOutOfStock
	require.NoError(t, s.Update(ctx, "p1", watch.ProductUpdate{
		Status:   &status,
		Evidence: []string{"sold out"},
	}))

	got, err := s.GetByID(ctx, "p1")
	require.NoError(t, err)
	got.Evidence[0] = "mutated"

	again, err := s.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, []string{"sold out"}, again.Evidence)
}

func TestAppendCheckRecordAndHistory(t *testing.T) {
	t.Parallel()

	s := NewProductStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, product("p1", "https://a.example.com")))

	first := watch.CheckRecord{
		ProductID:  "p1",
		Status:     watch.StatusOutOfStock,
		Confidence: watch.ConfidenceHigh,
		Evidence:   []string{"sold out"},
		CheckedAt:  time.Unix(2000, 0).UTC(),
	}
	second := watch.CheckRecord{
		ProductID:  "p1",
		Status:     watch.StatusInStock,
		Confidence: watch.ConfidenceHigh,
		Evidence:   []string{"in stock"},
		CheckedAt:  time.Unix(3000, 0).UTC(),
	}
	require.NoError(t, s.AppendCheckRecord(ctx, first))
	require.NoError(t, s.AppendCheckRecord(ctx, second))

	history, err := s.History(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, watch.StatusOutOfStock, history[0].Status)
	require.Equal(t, watch.StatusInStock, history[1].Status)

	require.ErrorIs(t,
		s.AppendCheckRecord(ctx, watch.CheckRecord{ProductID: "missing"}),
		watch.ErrProductNotFound,
	)
}

func TestDeleteCascadesHistory(t *testing.T) {
	t.Parallel()

	s := NewProductStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, product("p1", "https://a.example.com")))
	require.NoError(t, s.Create(ctx, product("p2", "https://b.example.com")))
	require.NoError(t, s.AppendCheckRecord(ctx, watch.CheckRecord{
		ProductID: "p1",
		Status:    watch.StatusInStock,
		CheckedAt: time.Unix(2000, 0).UTC(),
	}))

	require.NoError(t, s.Delete(ctx, "p1"))

	_, err := s.GetByID(ctx, "p1")
	require.ErrorIs(t, err, watch.ErrProductNotFound)

	history, err := s.History(ctx, "p1")
	require.NoError(t, err)
	require.Empty(t, history)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "p2", all[0].ID)

	require.ErrorIs(t, s.Delete(ctx, "p1"), watch.ErrProductNotFound)
}
