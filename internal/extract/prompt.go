package extract

// prompt instructs the model to return one JSON object per reservation,
// using the payload keys domain.FromPayload reads.
const prompt = `Analyze this booking confirmation (email or PDF text, any language) and
extract EVERY reservation it contains.

Reservation types ("tipo"): vuelo, hotel, auto, crucero, tren, restaurante,
actividad, espectaculo, transfer.

Rules:
- One object per flight segment. A round trip is at least two objects.
- Dates as YYYY-MM-DD, times as HH:MM (24h, local time of the place).
- If the document omits the year, use the year it was written in; never guess.
- "codigo_reserva" is the booking code (PNR). If the airline has its own code
  distinct from the agency's, put it in "codigo_aerolinea".
- Passenger names in airline form SURNAME/GIVEN NAMES.
- Omit keys you cannot fill. Never invent values.

Keys per type:
- vuelo: codigo_reserva, codigo_aerolinea, aerolinea, numero_vuelo, origen, destino
  (IATA codes), fecha_salida, hora_salida, fecha_llegada, hora_llegada, precio,
  pasajeros [{nombre, asiento, cabina, viajero_frecuente}]
- hotel: codigo_reserva, nombre_propiedad, direccion, ciudad, fecha_checkin,
  hora_checkin, fecha_checkout, hora_checkout, precio, huespedes [nombre]
- auto: codigo_reserva, empresa, lugar_retiro, fecha_retiro, hora_retiro,
  lugar_devolucion, fecha_devolucion, hora_devolucion, precio
- crucero: codigo_reserva, embarcacion, compania, puerto_embarque, fecha_embarque,
  hora_embarque, puerto_desembarque, fecha_desembarque, hora_desembarque, pasajeros
- tren: codigo_reserva, operador, numero_tren, origen, destino, fecha_salida,
  hora_salida, fecha_llegada, hora_llegada, pasajeros
- restaurante: codigo_reserva, nombre, direccion, fecha, hora, notas
- actividad: codigo_reserva, nombre, proveedor, punto_encuentro, fecha, hora,
  participantes
- espectaculo: codigo_reserva, evento, venue, fecha, hora, notas
- transfer: codigo_reserva, empresa, origen, destino, fecha, hora_pickup, notas

If there is no identifiable reservation, return [].

Return ONLY the JSON array, without markdown or commentary.

Document:
`
