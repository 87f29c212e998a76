// Package userstore is a database/sql implementation of
// portfolioAuth.UserProvider for PostgreSQL (lib/pq) and SQLite
// (modernc.org/sqlite).
//
// Roles are stored as their numeric value so the column orders the same way
// the role hierarchy does.
package userstore
