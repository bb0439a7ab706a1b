// Package resolve turns scanned media records into plan items. The
// deterministic resolver walks fixed provider fallback chains and
// builds destinations from fixed path templates; the fuzzy resolver
// hands ambiguous TV files to a model and normalizes its answer. The
// engine prefers deterministic results and only spends a model call
// when the chains come up empty.
package resolve
