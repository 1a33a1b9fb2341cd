// Package archive persists generated reports as JSON files keyed by report
// ID, with retention-based expiry.
//
// Each report is written to <dir>/<id>.json through a temporary file and an
// atomic rename. Entries older than the retention period are hidden from Get
// and List and removed by CleanupExpired.
package archive
