package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/domain"
)

func TestFromPayload_Flight(t *testing.T) {
	p := domain.Payload{
		"tipo":             "vuelo",
		"aerolinea":        "Copa Airlines",
		"numero_vuelo":     "cm 392",
		"origen":           "EZE",
		"destino":          "PTY",
		"fecha_salida":     "2026-11-02",
		"hora_salida":      "07:45",
		"fecha_llegada":    "2026-11-02",
		"hora_llegada":     "13:10",
		"codigo_reserva":   " abc123 ",
		"codigo_aerolinea": "XYZ789",
		"pasajeros": []any{
			map[string]any{"nombre": "GAMBERG/ANDRES", "asiento": "12A", "cabina": "Economy"},
			"Veronica Gerszkowicz",
		},
	}

	r, err := domain.FromPayload(p, domain.SourceEmailAutomatic)

	require.NoError(t, err)
	assert.Equal(t, domain.KindFlight, r.Kind)
	assert.Equal(t, "CM392", r.SegmentNumber)
	assert.Equal(t, "ABC123", r.Code)
	assert.Equal(t, []string{"XYZ789"}, r.AltCodes)
	assert.Equal(t, "Copa Airlines", r.Provider)
	assert.Equal(t, time.Date(2026, 11, 2, 7, 45, 0, 0, time.UTC), r.StartAt)
	assert.True(t, r.StartTimeKnown)
	require.NotNil(t, r.EndAt)
	assert.Equal(t, time.Date(2026, 11, 2, 13, 10, 0, 0, time.UTC), *r.EndAt)
	require.Len(t, r.Passengers, 2)
	assert.Equal(t, "12A", r.Passengers[0].Seat)
	assert.Equal(t, "Veronica Gerszkowicz", r.Passengers[1].Name)
	assert.Equal(t, domain.StatusConfirmed, r.Status)
}

func TestFromPayload_HotelUsesCheckinFields(t *testing.T) {
	p := domain.Payload{
		"tipo":             "hotel",
		"nombre_propiedad": "Hotel Central",
		"fecha_checkin":    "2026-11-02",
		"fecha_checkout":   "2026-11-05",
		"huespedes":        []any{map[string]any{"nombre": "Andrés Gamberg"}},
	}

	r, err := domain.FromPayload(p, domain.SourcePDFUpload)

	require.NoError(t, err)
	assert.Equal(t, domain.KindHotel, r.Kind)
	assert.Equal(t, "Hotel Central", r.Provider)
	assert.Equal(t, time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), r.StartAt)
	assert.False(t, r.StartTimeKnown)
	require.NotNil(t, r.EndAt)
	assert.Equal(t, 5, r.EndAt.Day())
	require.Len(t, r.Passengers, 1)
}

func TestFromPayload_CarRentalFallsBackToGenericLocations(t *testing.T) {
	p := domain.Payload{
		"tipo":         "auto",
		"empresa":      "Hertz",
		"fecha_retiro": "2026-11-03",
		"origen":       "PTY",
	}

	r, err := domain.FromPayload(p, domain.SourceManual)

	require.NoError(t, err)
	assert.Equal(t, domain.KindCarRental, r.Kind)
	assert.Equal(t, "PTY", r.Origin)
	assert.Nil(t, r.EndAt)
}

func TestFromPayload_MissingStartDate(t *testing.T) {
	_, err := domain.FromPayload(domain.Payload{"tipo": "restaurante", "nombre": "Maido"}, domain.SourceManual)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFromPayload_UnknownKind(t *testing.T) {
	_, err := domain.FromPayload(domain.Payload{"tipo": "submarine", "fecha": "2026-01-01"}, domain.SourceManual)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReservation_Validate_EndBeforeStart(t *testing.T) {
	start := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	r := domain.Reservation{Kind: domain.KindFlight, StartAt: start, StartTimeKnown: true, EndAt: &end, EndTimeKnown: true}

	assert.ErrorIs(t, r.Validate(), domain.ErrValidation)
}

func TestReservation_Validate_DateOnlyEndSameDay(t *testing.T) {
	// A same-day arrival without a time is midnight; only dates are compared.
	start := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	r := domain.Reservation{Kind: domain.KindFlight, StartAt: start, StartTimeKnown: true, EndAt: &end}

	assert.NoError(t, r.Validate())
}

func TestReservation_Fingerprint(t *testing.T) {
	r := domain.Reservation{
		SegmentNumber: "CM392",
		StartAt:       time.Date(2026, 11, 2, 7, 45, 0, 0, time.UTC),
		Origin:        "EZE",
		Destination:   "PTY",
	}

	fp, ok := r.Fingerprint()

	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), fp.Date)

	r.Origin = ""
	_, ok = r.Fingerprint()
	assert.False(t, ok, "incomplete tuple never fingerprints")
}

func TestReservation_Fingerprint_PlacesIgnoreCase(t *testing.T) {
	start := time.Date(2026, 11, 2, 7, 45, 0, 0, time.UTC)
	lower := domain.Reservation{SegmentNumber: "cm 392", StartAt: start, Origin: " eze ", Destination: "pty"}
	upper := domain.Reservation{SegmentNumber: "CM392", StartAt: start, Origin: "EZE", Destination: "PTY"}
	lower.Normalize()
	upper.Normalize()

	a, ok := lower.Fingerprint()
	require.True(t, ok)
	b, ok := upper.Fingerprint()
	require.True(t, ok)
	assert.Equal(t, b, a)
	assert.Equal(t, "eze", lower.Origin, "stored text keeps its case")
}
