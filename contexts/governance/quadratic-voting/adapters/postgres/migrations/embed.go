// Package migrations embeds the postgres ledger schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
