// Package optimistic wraps local writes: each mutation snapshots the
// affected cache region, applies a tentative patch so the change is visible
// immediately, issues the authoritative request, and then either finalizes
// the patch with the server's result or restores the snapshot verbatim.
// A failed mutation therefore never leaves a partially patched cache.
package optimistic
