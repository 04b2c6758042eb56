//go:build integration

// Package testdb provides PostgreSQL helpers for integration tests.
//
// Tests obtain a migrated connection with GetTestDB and isolate their writes
// with WithTx, which always rolls back:
//
//	func TestSomething(t *testing.T) {
//		db := testdb.GetTestDB(t)
//		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//			users := postgres.NewPostgresUserStore(tx, nil)
//			// ...
//		})
//	}
//
// Outside CI the tests skip when no database URL is configured; in CI a
// missing URL fails the run.
package testdb
