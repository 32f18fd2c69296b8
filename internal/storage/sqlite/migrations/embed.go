// Package migrations embeds the SQLite checkpoint schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
