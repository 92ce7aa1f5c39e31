// Package db provides embedded database schema and seed data.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Products is the catalog loaded by seed-db.
//
//go:embed seed/products.json
var Products []byte
