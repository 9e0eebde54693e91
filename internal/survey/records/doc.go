// Package records turns raw sensor logs into validated survey records.
//
// Responsibilities: splitting log text into numbered rows, validating each
// row against its configured headers, assigning derived timestamps to
// frequency-sampled streams and re-basing the sonar stream onto the same
// time origin. Corrupt rows and pairs are dropped with a diagnostic; a
// missing file yields an empty stream flagged as skipped.
package records
