// Package migrations embeds the service's SQL schema for golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
