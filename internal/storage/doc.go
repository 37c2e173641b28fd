// Package storage persists the tenant -> notification channel map and an
// audit trail of the commands that change it.
//
// Drivers:
//   - "sqlite" (default): modernc.org/sqlite, pure Go
//   - "file": JSON snapshot + JSON Lines audit log
package storage
