// Package migrations holds the goose SQL migrations of the entity store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
