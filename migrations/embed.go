// Package migrations embeds the goose SQL migrations for the itinerary
// store. They are applied by `itinctl migrate`, the API server at startup
// when AUTO_MIGRATE is set, and by integration test setup.
package migrations

import "embed"

// FS holds all *.sql migration files embedded at compile time.
// Pass it to goose.NewProvider rather than relying on a path at runtime.
//
//go:embed *.sql
var FS embed.FS
