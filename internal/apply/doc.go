// Package apply executes reviewed rename plans against the filesystem.
//
// Every item reaches exactly one terminal state: applied, skipped on
// collision, failed, or noop for dry runs. Each state is appended to
// the run's rollback manifest before the engine moves on, so a crash
// at any point leaves a replayable record. Collisions are handled by
// strategy (backup, overwrite, skip), case-only renames go through a
// two-step temp rename on case-insensitive filesystems, and renames
// that cross filesystems degrade to a verified copy plus remove.
package apply
