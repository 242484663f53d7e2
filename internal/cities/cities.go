// Package cities maps airport and station codes to the city names shown in
// trip titles. Unknown codes pass through unchanged.
package cities

import "strings"

var byCode = map[string]string{
	// Argentina
	"EZE": "Buenos Aires", "AEP": "Buenos Aires", "COR": "Córdoba", "MDZ": "Mendoza",
	"FTE": "El Calafate", "USH": "Ushuaia", "IGR": "Iguazú", "BRC": "Bariloche",
	// Chile
	"SCL": "Santiago", "IPC": "Easter Island", "PUQ": "Punta Arenas", "PMC": "Puerto Montt",
	"ANF": "Antofagasta",
	// Brazil
	"GRU": "São Paulo", "CGH": "São Paulo", "GIG": "Rio de Janeiro", "SDU": "Rio de Janeiro",
	"BSB": "Brasilia", "SSA": "Salvador", "FOR": "Fortaleza", "CNF": "Belo Horizonte",
	// Rest of South America
	"MVD": "Montevideo", "ASU": "Asunción", "VVI": "Santa Cruz", "CCS": "Caracas",
	"LIM": "Lima", "CUZ": "Cusco", "BOG": "Bogotá", "MDE": "Medellín", "CTG": "Cartagena",
	"UIO": "Quito", "GYE": "Guayaquil",
	// Central America and Caribbean
	"PTY": "Panama", "BZE": "Belize", "CUN": "Cancún", "MEX": "Mexico City",
	"SAL": "San Salvador", "GUA": "Guatemala City", "SJO": "San José", "MGA": "Managua",
	"SJU": "San Juan", "PUJ": "Punta Cana", "HAV": "Havana", "MBJ": "Montego Bay",
	"AUA": "Aruba", "CUR": "Curaçao",
	// United States and Canada
	"JFK": "New York", "LGA": "New York", "EWR": "New York", "LAX": "Los Angeles",
	"MIA": "Miami", "FLL": "Fort Lauderdale", "MCO": "Orlando", "ORD": "Chicago",
	"SFO": "San Francisco", "LAS": "Las Vegas", "ATL": "Atlanta", "BOS": "Boston",
	"SEA": "Seattle", "DEN": "Denver", "PHX": "Phoenix", "IAH": "Houston", "DFW": "Dallas",
	"MSP": "Minneapolis", "IAD": "Washington", "DCA": "Washington", "YYZ": "Toronto",
	"YUL": "Montreal", "YVR": "Vancouver",
	// Europe
	"MAD": "Madrid", "BCN": "Barcelona", "CDG": "Paris", "ORY": "Paris", "LHR": "London",
	"LGW": "London", "FCO": "Rome", "OLB": "Olbia", "AMS": "Amsterdam", "FRA": "Frankfurt",
	"MUC": "Munich", "ZRH": "Zurich", "VIE": "Vienna", "LIS": "Lisbon", "OPO": "Porto",
	"VCE": "Venice", "MXP": "Milan", "LIN": "Milan", "IST": "Istanbul", "ATH": "Athens",
	"PRG": "Prague", "BUD": "Budapest", "WAW": "Warsaw", "CPH": "Copenhagen", "DUB": "Dublin",
	"BER": "Berlin", "BRU": "Brussels", "NCE": "Nice",
	// Asia and Middle East
	"NRT": "Tokyo", "HND": "Tokyo", "BKK": "Bangkok", "SIN": "Singapore", "HKG": "Hong Kong",
	"DXB": "Dubai", "DOH": "Doha", "ICN": "Seoul", "DEL": "Delhi",
	// Oceania
	"SYD": "Sydney", "AKL": "Auckland", "MEL": "Melbourne",
	// Africa
	"JNB": "Johannesburg", "CPT": "Cape Town", "CAI": "Cairo", "CMN": "Casablanca",
}

// Name returns the display city for a location code. Lookup is
// case-insensitive; unknown codes, and free-text locations such as hotel
// names, are returned as given.
func Name(code string) string {
	if name, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return name
	}
	return code
}

// Known reports whether code has a display name.
func Known(code string) bool {
	_, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}
