// Package postgres implements the internal/store interfaces on PostgreSQL
// through the pgx stdlib driver, and owns the embedded goose migrations.
//
// Every store accepts a store.DBTX, so the same type works on a *sql.DB or,
// through WithTx, inside a transaction opened by store.RunInTransaction.
// Driver errors are mapped to store sentinel errors; raw SQL errors never
// leave the package.
package postgres
