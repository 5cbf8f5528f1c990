package entity_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ddt-ledger/internal/domain"
	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
)

func ptr[T any](v T) *T { return &v }

// ──────────────────────────────────────────────────────────────────────────────
// Tabla de estados
// ──────────────────────────────────────────────────────────────────────────────

func TestCanTransition_TablaCompleta(t *testing.T) {
	all := []entity.DdtStatus{
		entity.DdtStatusDraft, entity.DdtStatusIssued, entity.DdtStatusInTransit,
		entity.DdtStatusDelivered, entity.DdtStatusCancelled, entity.DdtStatusDeleted,
	}
	allowed := map[[2]entity.DdtStatus]bool{
		{entity.DdtStatusDraft, entity.DdtStatusIssued}:         true,
		{entity.DdtStatusDraft, entity.DdtStatusDeleted}:        true,
		{entity.DdtStatusIssued, entity.DdtStatusInTransit}:     true,
		{entity.DdtStatusIssued, entity.DdtStatusDelivered}:     true,
		{entity.DdtStatusIssued, entity.DdtStatusCancelled}:     true,
		{entity.DdtStatusInTransit, entity.DdtStatusDelivered}:  true,
		{entity.DdtStatusInTransit, entity.DdtStatusCancelled}:  true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]entity.DdtStatus{from, to}], entity.CanTransition(from, to),
				"transición %s -> %s", from, to)
		}
	}
}

// Caso 1: los estados terminales no tienen salida.
func TestCheckTransition_TerminalesFallan(t *testing.T) {
	for _, st := range []entity.DdtStatus{entity.DdtStatusDelivered, entity.DdtStatusCancelled} {
		d := &entity.Ddt{Status: st}
		err := d.CheckTransition(entity.DdtStatusIssued)
		require.Error(t, err)

		var te *domain.InvalidTransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, string(st), te.Current)
		assert.Equal(t, string(entity.DdtStatusIssued), te.Target)
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	}
}

// Caso 2: un documento borrado se comporta como estado deleted.
func TestCheckTransition_BorradoLogico(t *testing.T) {
	d := &entity.Ddt{Status: entity.DdtStatusDraft, DeletedAt: ptr(time.Now())}
	assert.Equal(t, entity.DdtStatusDeleted, d.CurrentStatus())
	assert.Error(t, d.CheckTransition(entity.DdtStatusIssued))
}

// ──────────────────────────────────────────────────────────────────────────────
// Bodegas por tipo
// ──────────────────────────────────────────────────────────────────────────────

func TestDestinationWarehouse_FallbackAOrigen(t *testing.T) {
	incoming := &entity.Ddt{Kind: entity.DdtKindIncoming, FromWarehouseID: ptr(int64(7))}
	wh, ok := incoming.DestinationWarehouse()
	require.True(t, ok)
	assert.Equal(t, int64(7), wh)

	outgoing := &entity.Ddt{Kind: entity.DdtKindOutgoing, FromWarehouseID: ptr(int64(7))}
	_, ok = outgoing.DestinationWarehouse()
	assert.False(t, ok, "outgoing no usa el origen como destino")
}

func TestDdtKind_CodePrefixYDescuento(t *testing.T) {
	assert.Equal(t, "OUT", entity.DdtKindOutgoing.CodePrefix())
	assert.Equal(t, "RNR", entity.DdtKindRentalReturn.CodePrefix())
	assert.True(t, entity.DdtKindInternal.DecrementsSource())
	assert.True(t, entity.DdtKindRentalOut.DecrementsSource())
	assert.False(t, entity.DdtKindIncoming.DecrementsSource())
	assert.False(t, entity.DdtKind("return").Valid())
}

func TestAppendNote(t *testing.T) {
	d := &entity.Ddt{}
	d.AppendNote("primera")
	d.AppendNote("segunda")
	assert.Equal(t, "primera\nsegunda", d.Notes)
}
