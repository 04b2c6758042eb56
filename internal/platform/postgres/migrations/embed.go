// Package migrations embeds the goose SQL migrations for the taskflow schema.
package migrations

import "embed"

// FS holds every *.sql migration, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
