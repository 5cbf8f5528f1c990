package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/jhoicas/ddt-ledger/internal/domain/inventory"
)

func TestReplay_SumaPorClave(t *testing.T) {
	movs := []*entity.StockMovement{
		{ProductID: 1, WarehouseID: 1, Quantity: dec(100)},
		{ProductID: 1, WarehouseID: 1, Quantity: dec(-50)},
		{ProductID: 1, WarehouseID: 1, Quantity: dec(50)},
		{ProductID: 2, WarehouseID: 1, Quantity: dec(7)},
	}
	got := inventory.Replay(movs)
	assert.True(t, dec(100).Equal(got[entity.StockKey{ProductID: 1, WarehouseID: 1}]))
	assert.True(t, dec(7).Equal(got[entity.StockKey{ProductID: 2, WarehouseID: 1}]))
}

func TestCompare_DetectaDesvios(t *testing.T) {
	ok := entity.NewInventory(entity.StockKey{ProductID: 1, WarehouseID: 1})
	ok.QuantityAvailable = dec(10)
	bad := entity.NewInventory(entity.StockKey{ProductID: 2, WarehouseID: 1})
	bad.QuantityAvailable = dec(15)

	balances := []entity.LedgerBalance{
		{StockKey: ok.Key(), Quantity: dec(10)},
		{StockKey: bad.Key(), Quantity: dec(12)},
		{StockKey: entity.StockKey{ProductID: 3, WarehouseID: 1}, Quantity: dec(4)},
	}
	drifts := inventory.Compare([]*entity.Inventory{bad, ok}, balances)
	require.Len(t, drifts, 2)
	assert.Equal(t, bad.Key(), drifts[0].Key)
	assert.True(t, dec(3).Equal(drifts[0].Difference()))
	assert.Equal(t, int64(3), drifts[1].Key.ProductID)
	assert.True(t, drifts[1].Stored.IsZero())
}
