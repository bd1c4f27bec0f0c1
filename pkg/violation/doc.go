// Package violation models validation failures and where they happened.
//
// A Violation pairs a rule identifier and message with two paths: the field
// path (where in the data the failing value lives) and the rule path (which
// rule failed). Paths are sequences of FieldPathElement values; map entries
// and repeated items carry a Subscript.
//
// Violations are plain data. They are created during one validate call,
// collected into a caller-owned Violations slice and never mutated afterwards.
// Violations.Err converts a non-empty slice into an error, and ToStatus maps
// them onto a gRPC InvalidArgument status for transport layers.
package violation
