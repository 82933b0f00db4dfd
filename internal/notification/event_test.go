package notification

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "mercado/pkg/errors"
)

func TestNewOfferEvent(t *testing.T) {
	raw := json.RawMessage(`{"supermercado":"Tienda A","producto":"Leche","precio":25.5,"descuento":10}`)

	ev, err := NewOfferEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, EventOffer, ev.Type)
	assert.Equal(t, "¡OFERTA! Tienda A tiene Leche por $25.5.", ev.Message)

	frame, err := json.Marshal(ev.Broadcast())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"tipo": "nueva_oferta",
		"mensaje": "¡OFERTA! Tienda A tiene Leche por $25.5.",
		"detalle_oferta": {"supermercado":"Tienda A","producto":"Leche","precio":25.5,"descuento":10}
	}`, string(frame))
}

func TestNewOfferEventRejectsMissingProduct(t *testing.T) {
	for name, body := range map[string]string{
		"empty":         ``,
		"not an object": `[1,2]`,
		"no producto":   `{"supermercado":"Tienda A","precio":10}`,
		"blank":         `{"producto":""}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewOfferEvent(json.RawMessage(body))
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			assert.Equal(t, "Datos de oferta faltantes.", pkgerrors.ToErrorResponse(err).Error)
		})
	}
}

func TestNewReportEvent(t *testing.T) {
	ev := NewReportEvent(ReportSignal{ID: 7, Producto: "Leche"})

	assert.Equal(t, "Nuevo reporte de inconsistencia #7: Leche.", ev.Message)

	frame, err := json.Marshal(ev.Broadcast())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"tipo": "nuevo_reporte",
		"mensaje": "Nuevo reporte de inconsistencia #7: Leche.",
		"datos": {"id":7,"producto":"Leche"}
	}`, string(frame))
}

func TestDecodeEventRoundTrip(t *testing.T) {
	value, err := EncodeEvent(NewReportEvent(ReportSignal{ID: 3, Producto: "Pan"}))
	require.NoError(t, err)

	ev, err := DecodeEvent(value)
	require.NoError(t, err)
	assert.Equal(t, EventReport, ev.Type)
	assert.Equal(t, "Nuevo reporte de inconsistencia #3: Pan.", ev.Message)

	ev, err = DecodeEvent([]byte(`{"tipo":"nueva_oferta","datos":{"supermercado":"S","producto":"P","precio":"9.90"}}`))
	require.NoError(t, err)
	assert.Equal(t, "¡OFERTA! S tiene P por $9.90.", ev.Message)
}

func TestDecodeEventRejectsUnknownType(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"tipo":"otro","datos":{}}`))
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = DecodeEvent([]byte(`not json`))
	assert.True(t, pkgerrors.IsValidation(err))
}
