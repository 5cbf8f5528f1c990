package repository

import "context"

// CodeSequenceRepository contador atómico a nivel de almacén por (scope, periodo).
type CodeSequenceRepository interface {
	Next(ctx context.Context, scope, period string) (int64, error)
	// NextMovement numerador global de asientos, sin bloqueo y sin reversión al abortar.
	NextMovement(ctx context.Context) (int64, error)
}
