// Package testdb provides test database utilities for the SipMate API.
//
// # Test Database Setup
//
//	func TestSomething(t *testing.T) {
//	    tdb := testdb.New(t)
//	    defer tdb.Close()
//	}
//
// Every .surql file under migrations/ is applied in name order. Each TestDB
// gets its own namespace, removed again by Close.
//
// # Connection
//
// By default tests connect to TEST_DB_HOST:TEST_DB_PORT (localhost:8000,
// root/root). With TEST_DB_CONTAINER=1 a SurrealDB container is started once
// per test binary and used instead.
//
// # Shared Database
//
//	tdb := testdb.NewShared(t)
//	t.Run("save", func(t *testing.T) { db := tdb.SetupSubtest(t); ... })
//
// SetupSubtest clears every table before the subtest runs.
package testdb
