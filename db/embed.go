// Package db embeds the storefront schema so binaries can migrate without
// shipping SQL files alongside them.
package db

import _ "embed"

// Schema holds the idempotent DDL for every table and index the store uses.
//
//go:embed migrations/001_schema.sql
var Schema string
