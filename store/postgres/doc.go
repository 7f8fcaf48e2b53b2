// Package postgres implements weft's persistence interfaces on
// PostgreSQL using pgx/v5. It is the durable backend of choice for edge
// gateways that must survive restarts: executions, checkpoints, events,
// and cached step results all live in Postgres tables created by
// embedded migrations.
package postgres
