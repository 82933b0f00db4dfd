package notification

import (
	"encoding/json"
	"fmt"
	"strconv"

	pkgerrors "mercado/pkg/errors"
)

type EventType string

const (
	EventOffer  EventType = "nueva_oferta"
	EventReport EventType = "nuevo_reporte"
)

// Event is a notification ready to be fanned out. Payload is sent to
// clients verbatim under the key that matches Type.
type Event struct {
	Type    EventType
	Message string
	Payload json.RawMessage
}

var ErrMissingOffer = pkgerrors.ErrValidation.WithMessage("Datos de oferta faltantes.")

// NewOfferEvent builds an offer notification from the body a merchant
// service posted. The body is forwarded to clients unchanged.
func NewOfferEvent(raw json.RawMessage) (Event, error) {
	var offer map[string]interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &offer) != nil || offer == nil {
		return Event{}, ErrMissingOffer
	}
	if isEmpty(offer["producto"]) {
		return Event{}, ErrMissingOffer
	}

	return Event{
		Type: EventOffer,
		Message: fmt.Sprintf("¡OFERTA! %s tiene %s por $%s.",
			render(offer["supermercado"]), render(offer["producto"]), render(offer["precio"])),
		Payload: raw,
	}, nil
}

type ReportSignal struct {
	ID       int64  `json:"id"`
	Producto string `json:"producto"`
}

func NewReportEvent(signal ReportSignal) Event {
	payload, _ := json.Marshal(signal)
	return Event{
		Type:    EventReport,
		Message: fmt.Sprintf("Nuevo reporte de inconsistencia #%d: %s.", signal.ID, signal.Producto),
		Payload: payload,
	}
}

// DecodeEvent parses the {"tipo", "datos"} records published on the
// notification topic.
func DecodeEvent(value []byte) (Event, error) {
	var wire struct {
		Tipo  EventType       `json:"tipo"`
		Datos json.RawMessage `json:"datos"`
	}
	if err := json.Unmarshal(value, &wire); err != nil {
		return Event{}, pkgerrors.ErrValidation.WithMessage("malformed notification").WithCause(err)
	}

	switch wire.Tipo {
	case EventOffer:
		return NewOfferEvent(wire.Datos)
	case EventReport:
		var signal ReportSignal
		if err := json.Unmarshal(wire.Datos, &signal); err != nil {
			return Event{}, pkgerrors.ErrValidation.WithMessage("malformed report signal").WithCause(err)
		}
		return NewReportEvent(signal), nil
	default:
		return Event{}, pkgerrors.ErrValidation.WithMessage("unknown notification type").WithDetail("tipo", string(wire.Tipo))
	}
}

// EncodeEvent is the inverse of DecodeEvent.
func EncodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(struct {
		Tipo  EventType       `json:"tipo"`
		Datos json.RawMessage `json:"datos"`
	}{ev.Type, ev.Payload})
}

// BroadcastMessage is the frame written to every connected client.
type BroadcastMessage struct {
	Tipo          EventType       `json:"tipo"`
	Mensaje       string          `json:"mensaje"`
	DetalleOferta json.RawMessage `json:"detalle_oferta,omitempty"`
	Datos         json.RawMessage `json:"datos,omitempty"`
}

func (ev Event) Broadcast() BroadcastMessage {
	msg := BroadcastMessage{Tipo: ev.Type, Mensaje: ev.Message}
	if ev.Type == EventOffer {
		msg.DetalleOferta = ev.Payload
	} else {
		msg.Datos = ev.Payload
	}
	return msg
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	}
	return false
}

func render(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
