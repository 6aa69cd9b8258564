// Package migrations embeds the SQLite schema for fulfillment storage.
package migrations

import "embed"

// FS contains embedded SQLite migrations for fulfillment storage.
//
//go:embed *.sql
var FS embed.FS
