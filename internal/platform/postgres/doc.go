// Package postgres implements the store interfaces on top of
// PostgreSQL, accessed through database/sql with the pgx driver. It
// also carries the embedded goose migrations for the tasks schema.
package postgres
