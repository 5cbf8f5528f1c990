package postgres

import (
	"context"

	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
)

var _ repository.CodeSequenceRepository = (*CodeSequenceRepo)(nil)

// CodeSequenceRepo contadores por (scope, periodo) en la tabla code_sequences.
type CodeSequenceRepo struct {
	q Querier
}

// NewCodeSequenceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCodeSequenceRepository(q Querier) *CodeSequenceRepo {
	return &CodeSequenceRepo{q: q}
}

// Next incrementa y devuelve el contador con un upsert atómico. La fila queda bloqueada hasta el fin de la tx,
// lo que serializa a los creadores del mismo scope y periodo. Solo códigos de DDT.
func (r *CodeSequenceRepo) Next(ctx context.Context, scope, period string) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO code_sequences (scope, period, last_value) VALUES ($1, $2, 1)
		ON CONFLICT (scope, period) DO UPDATE SET last_value = code_sequences.last_value + 1
		RETURNING last_value`, scope, period).Scan(&n)
	if err != nil {
		return 0, classify("next code sequence", err)
	}
	return n, nil
}

// NextMovement siguiente valor de stock_movement_code_seq. No toma bloqueos; un rollback deja huecos.
func (r *CodeSequenceRepo) NextMovement(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, `SELECT nextval('stock_movement_code_seq')`).Scan(&n); err != nil {
		return 0, classify("next movement sequence", err)
	}
	return n, nil
}
