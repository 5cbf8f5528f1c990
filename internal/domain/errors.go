package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrDuplicate           = errors.New("recurso duplicado")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrInvalidTransition   = errors.New("transición de estado inválida")
	ErrInsufficientStock   = errors.New("stock insuficiente")
	ErrConcurrencyConflict = errors.New("conflicto de concurrencia")
	ErrPersistence         = errors.New("error de persistencia")
)

// ValidationError entrada mal formada; culpa del caller, nunca se reintenta.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError construye el error con un único campo.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add agrega un campo inválido.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// HasErrors indica si se registró al menos un campo.
func (e *ValidationError) HasErrors() bool { return len(e.Fields) > 0 }

// OrNil devuelve nil si no hay campos inválidos (evita el nil tipado en la interfaz error).
func (e *ValidationError) OrNil() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, m := range e.Fields {
		parts = append(parts, f+": "+m)
	}
	return "validación: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// InvalidTransitionError transición fuera de la tabla de estados.
type InvalidTransitionError struct {
	Current string
	Target  string
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("transición inválida: %s -> %s", e.Current, e.Target)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// InsufficientStockError el stock libre no cubre la cantidad requerida.
type InsufficientStockError struct {
	ProductID   int64
	WarehouseID int64
	Required    decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para producto %d en bodega %d: disponible %s, requerido %s",
		e.ProductID, e.WarehouseID, e.Available.String(), e.Required.String())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ConcurrencyError pérdida de lock o fallo de serialización; la operación completa puede reintentarse.
type ConcurrencyError struct {
	Op  string
	Err error
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("conflicto de concurrencia en %s: %v", e.Op, e.Err)
}

func (e *ConcurrencyError) Unwrap() []error { return []error{ErrConcurrencyConflict, e.Err} }

// PersistenceError fallo del almacén; fatal para la operación.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistencia (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// IsRetryable indica si el error recomienda reintentar la operación completa.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
