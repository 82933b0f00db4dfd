package models

import (
	"encoding/json"
	"time"
)

// EnvelopeTypeInconsistency is the only envelope tipo the report worker accepts.
const EnvelopeTypeInconsistency = "INCONSISTENCIA"

// ReportEnvelope is the queue payload for an inconsistency report.
// Datos stays raw so the worker can decode it twice: once into ReportData and
// once into a generic map for rule evaluation.
type ReportEnvelope struct {
	Tipo  string          `json:"tipo"`
	Datos json.RawMessage `json:"datos"`
}

type ReportData struct {
	Producto     string    `json:"producto"`
	Supermercado string    `json:"supermercado"`
	Precio       float64   `json:"precio"`
	Descripcion  string    `json:"descripcion"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewReportEnvelope(data ReportData) (ReportEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return ReportEnvelope{}, err
	}
	return ReportEnvelope{Tipo: EnvelopeTypeInconsistency, Datos: raw}, nil
}
