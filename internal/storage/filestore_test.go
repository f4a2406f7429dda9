package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedStore(t *testing.T, items []Item, banned []string) *FileStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stock.json")
	payload, err := json.Marshal(storeData{Items: items, BannedEmails: banned})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	store := NewFileStore(path, zap.NewNop())
	require.NoError(t, store.Load(context.Background()))
	return store
}

func testCatalog() []Item {
	return []Item{
		{ID: 1, Name: "Band-Aid", Price: 4.99, Stock: 20},
		{ID: 2, Name: "Heating Pad", Price: 35, Stock: 3},
	}
}

func TestFileStoreLoadSeedsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.json")
	store := NewFileStore(path, zap.NewNop())

	require.NoError(t, store.Load(context.Background()))

	items, err := store.Items(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, items)

	// The seed is persisted so a second store sees the same catalog.
	second := NewFileStore(path, zap.NewNop())
	require.NoError(t, second.Load(context.Background()))
	again, err := second.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, items, again)
}

func TestFileStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewFileStore(path, zap.NewNop())
	err := store.Load(context.Background())

	assert.ErrorIs(t, err, ErrStorageUnavailable)

	// The store stays usable with an empty catalog.
	items, err := store.Items(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestApplyOrderInsufficientStock(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)

	result, err := store.ApplyOrder(context.Background(), []OrderLine{{ItemID: 2, Quantity: 5}})
	require.NoError(t, err)

	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "Heating Pad (requested 5, available 3)", result.Rejected[0].Reason)
	assert.Empty(t, result.Fulfilled)
	assert.Zero(t, result.Total)

	items, err := store.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, items[1].Stock, "a rejected line must not touch stock")
}

func TestApplyOrderDecrementsAndTotals(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)

	result, err := store.ApplyOrder(context.Background(), []OrderLine{{ItemID: 1, Quantity: 2}})
	require.NoError(t, err)

	require.Len(t, result.Fulfilled, 1)
	assert.Equal(t, "Band-Aid", result.Fulfilled[0].Name)
	assert.Equal(t, 2, result.Fulfilled[0].Quantity)
	assert.InDelta(t, 9.98, result.Total, 1e-9)
	assert.InDelta(t, result.Fulfilled[0].Subtotal, result.Total, 1e-9)

	items, err := store.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18, items[0].Stock)
}

func TestApplyOrderUnknownItem(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)

	result, err := store.ApplyOrder(context.Background(), []OrderLine{{ItemID: 99, Quantity: 1}})
	require.NoError(t, err)

	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "Item 99 not found", result.Rejected[0].Reason)
}

func TestApplyOrderMixedLines(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)

	result, err := store.ApplyOrder(context.Background(), []OrderLine{
		{ItemID: 1, Quantity: 3},
		{ItemID: 2, Quantity: 5},
		{ItemID: 7, Quantity: 1},
	})
	require.NoError(t, err)

	require.Len(t, result.Fulfilled, 1)
	require.Len(t, result.Rejected, 2)

	var sum float64
	for _, f := range result.Fulfilled {
		sum += f.Subtotal
	}
	assert.InDelta(t, sum, result.Total, 1e-9)

	items, err := store.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 17, items[0].Stock)
	assert.Equal(t, 3, items[1].Stock)
}

func TestApplyOrderRejectsNonPositiveQuantity(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)

	_, err := store.ApplyOrder(context.Background(), []OrderLine{{ItemID: 1, Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	items, _ := store.Items(context.Background())
	assert.Equal(t, 20, items[0].Stock)
}

func TestUpsertAllocatesNextID(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)

	item, err := store.Upsert(context.Background(), ItemUpdate{Name: "Ice Pack", Price: 7.5, Stock: 12})
	require.NoError(t, err)
	assert.Equal(t, 3, item.ID)

	items, err := store.Items(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, item, items[2])
}

func TestUpsertAllocatesIDOnEmptyCatalog(t *testing.T) {
	store := seedStore(t, []Item{}, nil)

	item, err := store.Upsert(context.Background(), ItemUpdate{Name: "Ice Pack", Price: 7.5, Stock: 12})
	require.NoError(t, err)
	assert.Equal(t, 1, item.ID)
}

func TestUpsertReplacesInPlace(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)

	id := 1
	item, err := store.Upsert(context.Background(), ItemUpdate{ID: &id, Name: "Band-Aid XL", Price: 6.5, Stock: 9})
	require.NoError(t, err)

	items, err := store.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, item, items[0])
	assert.Equal(t, "Band-Aid XL", items[0].Name)
	assert.Len(t, items, 2)
}

func TestUpsertUnknownIDIsRejected(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)

	id := 42
	_, err := store.Upsert(context.Background(), ItemUpdate{ID: &id, Name: "Ghost", Price: 1, Stock: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	items, _ := store.Items(context.Background())
	assert.Len(t, items, 2, "a failed upsert must not insert")
}

func TestUpsertValidation(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)

	tests := []struct {
		name string
		upd  ItemUpdate
	}{
		{"empty name", ItemUpdate{Name: "  ", Price: 1, Stock: 1}},
		{"negative price", ItemUpdate{Name: "Thing", Price: -0.01, Stock: 1}},
		{"negative stock", ItemUpdate{Name: "Thing", Price: 1, Stock: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Upsert(context.Background(), tc.upd)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestRemove(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)

	require.NoError(t, store.Remove(context.Background(), 1))

	items, err := store.Items(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].ID)

	assert.ErrorIs(t, store.Remove(context.Background(), 1), ErrNotFound)
}

func TestBanIsIdempotentAndCaseInsensitive(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)
	ctx := context.Background()

	require.NoError(t, store.Ban(ctx, "X@Y.com"))
	require.NoError(t, store.Ban(ctx, "x@y.COM"))

	banned, err := store.IsBanned(ctx, "X@Y.Com")
	require.NoError(t, err)
	assert.True(t, banned)

	// The persisted list holds a single normalized entry.
	store.mu.Lock()
	list := append([]string{}, store.data.BannedEmails...)
	store.mu.Unlock()
	assert.Equal(t, []string{"x@y.com"}, list)

	banned, err = store.IsBanned(ctx, "other@y.com")
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestBanRequiresEmail(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)
	assert.ErrorIs(t, store.Ban(context.Background(), "   "), ErrInvalidInput)
}

func TestApplyOrderPersistFailureLeavesCatalogUntouched(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)

	// A directory as target makes the wholesale rewrite fail.
	store.path = t.TempDir()

	_, err := store.ApplyOrder(context.Background(), []OrderLine{{ItemID: 1, Quantity: 2}})
	assert.ErrorIs(t, err, ErrStorageWriteFailed)

	items, err := store.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, items[0].Stock, "a failed persist must not leak the decrement")
}

func TestUpsertPersistFailureLeavesCatalogUntouched(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)
	store.path = t.TempDir()

	_, err := store.Upsert(context.Background(), ItemUpdate{Name: "Ice Pack", Price: 7.5, Stock: 12})
	assert.ErrorIs(t, err, ErrStorageWriteFailed)

	items, err := store.Items(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestBanPersistFailureLeavesListUntouched(t *testing.T) {
	store := seedStore(t, testCatalog(), nil)
	store.path = t.TempDir()

	err := store.Ban(context.Background(), "x@y.com")
	assert.ErrorIs(t, err, ErrStorageWriteFailed)

	banned, err := store.IsBanned(context.Background(), "x@y.com")
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestMutationsPersistAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.json")
	payload, err := json.Marshal(storeData{Items: testCatalog(), BannedEmails: []string{}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	store := NewFileStore(path, zap.NewNop())
	require.NoError(t, store.Load(context.Background()))

	_, err = store.ApplyOrder(context.Background(), []OrderLine{{ItemID: 1, Quantity: 5}})
	require.NoError(t, err)
	require.NoError(t, store.Ban(context.Background(), "gone@example.com"))

	reloaded := NewFileStore(path, zap.NewNop())
	require.NoError(t, reloaded.Load(context.Background()))

	items, err := reloaded.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, items[0].Stock)

	banned, err := reloaded.IsBanned(context.Background(), "gone@example.com")
	require.NoError(t, err)
	assert.True(t, banned)
}
