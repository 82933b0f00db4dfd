package reports

import (
	"strings"
	"time"

	pkgerrors "mercado/pkg/errors"
)

type Status string

const (
	StatusPending   Status = "PENDIENTE"
	StatusReviewing Status = "EN_REVISION"
	StatusResolved  Status = "RESUELTO"
)

var (
	ErrInvalidStatus  = pkgerrors.ErrValidation.WithMessage("Estado no válido.")
	ErrReportNotFound = pkgerrors.ErrNotFound.WithMessage("Reporte no encontrado.")
	ErrMissingFields  = pkgerrors.ErrValidation.WithMessage("Faltan datos obligatorios (producto, supermercado, precio).")
	ErrNegativePrice  = pkgerrors.ErrValidation.WithMessage("El precio no puede ser negativo.")
)

// ParseStatus accepts exactly the three workflow states; matching is case
// sensitive.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusReviewing, StatusResolved:
		return st, nil
	}
	return "", ErrInvalidStatus.WithDetail("nuevo_estado", s)
}

// Report is a persisted inconsistency report as regulators see it.
type Report struct {
	ID                    int64     `json:"id"`
	ProductoNombre        string    `json:"producto_nombre"`
	SupermercadoReportado string    `json:"supermercado_reportado"`
	PrecioEncontrado      float64   `json:"precio_encontrado"`
	Descripcion           string    `json:"descripcion"`
	Estado                Status    `json:"estado"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
	EnvelopeID            string    `json:"-"`
}

// NewReport is what the worker hands to the store. EnvelopeID is the
// idempotency key of the queue message it came from.
type NewReport struct {
	EnvelopeID   string
	Producto     string
	Supermercado string
	Precio       float64
	Descripcion  string
}

// Submission is the consumer-facing request body.
type Submission struct {
	Producto     string   `json:"producto"`
	Supermercado string   `json:"supermercado"`
	Precio       *float64 `json:"precio"`
	Descripcion  string   `json:"descripcion"`
}

func (s Submission) Validate() error {
	if strings.TrimSpace(s.Producto) == "" || strings.TrimSpace(s.Supermercado) == "" || s.Precio == nil {
		return ErrMissingFields
	}
	if *s.Precio < 0 {
		return ErrNegativePrice.WithDetail("precio", *s.Precio)
	}
	return nil
}
