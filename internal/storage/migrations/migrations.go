// Package migrations embeds the schema of the SQL blob store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
