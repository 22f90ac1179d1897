// Package sqldocs exposes the state-table DDL directly from the docs tree.
package sqldocs

import _ "embed"

// SQLite contains the SQLite DDL for the snapshot table.
//
//go:embed sqlite.sql
var SQLite string

// Postgres contains the Postgres DDL for the snapshot table.
//
//go:embed postgres.sql
var Postgres string
