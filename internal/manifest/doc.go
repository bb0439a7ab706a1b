// Package manifest writes and replays JSONL rollback manifests.
//
// Every apply run records a header plus one entry per filesystem
// operation under <root>/.namegnome/rollbacks/<reportID>.jsonl, each
// line fsynced as it is written. Rollback reverses applied renames in
// reverse chronological order and restores collision backups.
package manifest
