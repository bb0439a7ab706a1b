// Package anthology simplifies the episode segments of an anthology
// media file before any model call is considered. The simplifier is
// pure: it never touches disk or the network.
package anthology
