package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Payload is the structured output of the extraction adapter for one
// reservation, kept verbatim on the record for audit. Keys follow the
// extraction prompt (Spanish field names, dates as YYYY-MM-DD, times HH:MM).
type Payload map[string]any

// String returns the first non-empty value among keys, rendered as a string.
func (p Payload) String(keys ...string) string {
	for _, k := range keys {
		switch v := p[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

// People collects travelers from every list the payload may carry them
// in: pasajeros (flights, cruises, trains), huespedes (hotels), and
// participantes (activities). Items may be objects or bare name strings.
func (p Payload) People() []Passenger {
	var out []Passenger
	for _, key := range []string{"pasajeros", "huespedes", "participantes"} {
		items, ok := p[key].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			switch v := item.(type) {
			case string:
				if name := strings.TrimSpace(v); name != "" {
					out = append(out, Passenger{Name: name})
				}
			case map[string]any:
				pp := Payload(v)
				name := pp.String("nombre", "name")
				if name == "" {
					continue
				}
				out = append(out, Passenger{
					Name:           name,
					Seat:           pp.String("asiento", "seat"),
					Cabin:          pp.String("cabina", "clase", "cabin"),
					LoyaltyProgram: pp.String("viajero_frecuente", "programa", "loyalty_program"),
				})
			}
		}
	}
	return out
}

// fieldMap names the payload keys that feed each core field for one kind.
// Keys are tried in order; the generic fallbacks in FromPayload apply after.
type fieldMap struct {
	startDate   []string
	endDate     []string
	startTime   []string
	endTime     []string
	provider    []string
	origin      []string
	destination []string
}

var kindFields = map[Kind]fieldMap{
	KindFlight: {
		startDate: []string{"fecha_salida"}, endDate: []string{"fecha_llegada"},
		startTime: []string{"hora_salida"}, endTime: []string{"hora_llegada"},
		provider: []string{"aerolinea"}, origin: []string{"origen"}, destination: []string{"destino"},
	},
	KindHotel: {
		startDate: []string{"fecha_checkin"}, endDate: []string{"fecha_checkout"},
		startTime: []string{"hora_checkin"}, endTime: []string{"hora_checkout"},
		provider: []string{"nombre_propiedad"}, origin: []string{"direccion"},
		destination: []string{"nombre_propiedad", "ciudad"},
	},
	KindCruise: {
		startDate: []string{"fecha_embarque"}, endDate: []string{"fecha_desembarque"},
		startTime: []string{"hora_embarque"}, endTime: []string{"hora_desembarque"},
		provider: []string{"embarcacion", "compania"}, origin: []string{"puerto_embarque", "origen"},
		destination: []string{"puerto_desembarque", "destino"},
	},
	KindCarRental: {
		startDate: []string{"fecha_retiro"}, endDate: []string{"fecha_devolucion"},
		startTime: []string{"hora_retiro"}, endTime: []string{"hora_devolucion"},
		provider: []string{"empresa"}, origin: []string{"lugar_retiro", "origen"},
		destination: []string{"lugar_devolucion", "destino"},
	},
	KindRestaurant: {
		startDate: []string{"fecha"}, startTime: []string{"hora", "hora_reserva"},
		provider: []string{"nombre"}, origin: []string{"direccion"}, destination: []string{"nombre"},
	},
	KindShow: {
		startDate: []string{"fecha"}, startTime: []string{"hora", "hora_inicio"},
		provider: []string{"evento"}, origin: []string{"venue"}, destination: []string{"venue"},
	},
	KindActivity: {
		startDate: []string{"fecha"}, startTime: []string{"hora", "hora_inicio"},
		provider: []string{"nombre", "proveedor"}, origin: []string{"punto_encuentro"},
		destination: []string{"punto_encuentro"},
	},
	KindTrain: {
		startDate: []string{"fecha_salida"}, endDate: []string{"fecha_llegada"},
		startTime: []string{"hora_salida"}, endTime: []string{"hora_llegada"},
		provider: []string{"operador"}, origin: []string{"origen"}, destination: []string{"destino"},
	},
	KindTransfer: {
		startDate: []string{"fecha"}, startTime: []string{"hora_pickup", "hora"},
		provider: []string{"empresa"}, origin: []string{"origen"}, destination: []string{"destino"},
	},
}

// genericProviders is the provider chain tried when the kind's own keys are empty.
var genericProviders = []string{"aerolinea", "nombre_propiedad", "embarcacion", "empresa", "nombre", "evento", "operador", "proveedor"}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// StartDateKeys returns the payload keys that may hold the start date for
// kind, most specific first. The year-correction pass uses it.
func StartDateKeys(kind Kind) []string {
	return withFallback(kindFields[kind].startDate, "fecha_salida", "fecha")
}

func withFallback(keys []string, fallback ...string) []string {
	out := make([]string, 0, len(keys)+len(fallback))
	return append(append(out, keys...), fallback...)
}

// FromPayload builds a reservation from one extraction payload using the
// per-kind field table. A payload without a parseable start date is a
// validation failure; the caller skips it and keeps its siblings.
func FromPayload(p Payload, src Source) (Reservation, error) {
	kind, err := ParseKind(p.String("tipo", "kind"))
	if err != nil {
		return Reservation{}, err
	}
	fm := kindFields[kind]

	startDate := p.String(StartDateKeys(kind)...)
	start, err := parseDate(startDate)
	if err != nil {
		return Reservation{}, fmt.Errorf("%w: no usable start date (%q)", ErrValidation, startDate)
	}

	r := Reservation{
		Kind:          kind,
		Source:        src,
		Origin:        p.String(fm.origin...),
		Destination:   p.String(fm.destination...),
		Code:          p.String("codigo_reserva", "code"),
		Provider:      p.String(fm.provider...),
		SegmentNumber: p.String("numero_vuelo", "numero_tren", "numero"),
		Price:         p.String("precio", "precio_total"),
		Notes:         p.String("notas", "descripcion"),
		Passengers:    p.People(),
		Status:        StatusConfirmed,
		RawPayload:    p,
	}
	if r.Provider == "" {
		r.Provider = p.String(genericProviders...)
	}
	if alt := p.String("codigo_aerolinea"); alt != "" {
		r.AltCodes = []string{alt}
	}

	r.StartAt, r.StartTimeKnown = combine(start, p.String(withFallback(fm.startTime, "hora_salida")...))

	if endDate := p.String(withFallback(fm.endDate, "fecha_llegada")...); endDate != "" {
		if end, err := parseDate(endDate); err == nil {
			at, known := combine(end, p.String(withFallback(fm.endTime, "hora_llegada")...))
			r.EndAt, r.EndTimeKnown = &at, known
		}
	}

	r.Normalize()
	if err := r.Validate(); err != nil {
		return Reservation{}, err
	}
	return r, nil
}

func parseDate(s string) (time.Time, error) {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	return time.Parse(dateLayout, s)
}

// combine attaches an HH:MM time of day to a date. Unparseable or missing
// times leave the date at midnight and report the time as unknown.
func combine(date time.Time, hhmm string) (time.Time, bool) {
	t, err := time.Parse(timeLayout, strings.TrimSpace(hhmm))
	if err != nil {
		return date, false
	}
	return date.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), true
}
