package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletap/tabletap/models"
)

func TestLedgerRecordMineDeduplicates(t *testing.T) {
	ledger := NewLedger(NewMemStore())

	require.NoError(t, ledger.RecordMine([]uint{3, 1, 2}))
	require.NoError(t, ledger.RecordMine([]uint{2, 4}))

	owned, err := ledger.Snapshot()
	require.NoError(t, err)
	assert.Len(t, owned, 4)
	for _, id := range []uint{1, 2, 3, 4} {
		assert.Contains(t, owned, id)
	}
}

func TestLedgerSurvivesReload(t *testing.T) {
	store := NewMemStore()

	ledger := NewLedger(store)
	require.NoError(t, ledger.RecordMine([]uint{10, 11}))

	// a fresh ledger over the same store sees the same IDs
	reloaded := NewLedger(store)
	owned, err := reloaded.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, owned, uint(10))
	assert.Contains(t, owned, uint(11))
}

func TestPartitionOrders(t *testing.T) {
	orders := []models.OrderRecord{
		{ID: 1, ItemName: "Sinigang"},
		{ID: 2, ItemName: "Bangus"},
		{ID: 3, ItemName: "Ensalada"},
	}
	owned := map[uint]struct{}{1: {}, 3: {}}

	mine, group := PartitionOrders(orders, owned)
	require.Len(t, mine, 2)
	require.Len(t, group, 1)
	assert.Equal(t, uint(2), group[0].ID)
}

func TestPartitionOrdersIsIdempotent(t *testing.T) {
	orders := []models.OrderRecord{{ID: 1}, {ID: 2}, {ID: 3}}
	owned := map[uint]struct{}{2: {}}

	mine1, group1 := PartitionOrders(orders, owned)
	mine2, group2 := PartitionOrders(orders, owned)
	assert.Equal(t, mine1, mine2)
	assert.Equal(t, group1, group2)
}

func TestPartitionOrdersEmptyLedger(t *testing.T) {
	orders := []models.OrderRecord{{ID: 1}, {ID: 2}}

	mine, group := PartitionOrders(orders, map[uint]struct{}{})
	assert.Empty(t, mine)
	assert.Len(t, group, 2)
}

func TestLedgerClear(t *testing.T) {
	ledger := NewLedger(NewMemStore())
	require.NoError(t, ledger.RecordMine([]uint{5}))
	require.NoError(t, ledger.Clear())

	owned, err := ledger.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, owned)
}
