// Package spec embeds the OpenAPI description of the itinerary API.
// cmd/api hands it to the HTTP server, which serves it at /openapi.yaml.
package spec

import _ "embed"

// OpenAPI contains the raw bytes of openapi.yaml, embedded at compile time.
//
//go:embed openapi.yaml
var OpenAPI []byte
