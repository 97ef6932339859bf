// Package postgres implements store.FlagStore using pgx/v5 with raw SQL
// and embedded migrations.
package postgres
