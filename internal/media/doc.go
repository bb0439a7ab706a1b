// Package media defines the shared data model for the scan/plan/apply
// pipeline: scanned media records with their anthology segments, provider
// source references, and planned rename operations. Values are validated at
// construction and treated as immutable afterwards.
package media
