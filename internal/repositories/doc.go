// Package repositories groups the Postgres persistence layer. Each entity has
// its own subpackage; this package holds the shared integration test suite.
package repositories
