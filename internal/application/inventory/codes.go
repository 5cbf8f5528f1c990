package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
)

// NextMovementCode genera MOV-YYYYMMDD-NNNN. NNNN sale del numerador global de asientos: es único
// y creciente pero no se reinicia por día y admite huecos.
func NextMovementCode(ctx context.Context, codes repository.CodeSequenceRepository, at time.Time) (string, error) {
	n, err := codes.NextMovement(ctx)
	if err != nil {
		return "", fmt.Errorf("secuencia de movimientos: %w", err)
	}
	return fmt.Sprintf("MOV-%s-%04d", at.Format("20060102"), n), nil
}
