// Package validation provides centralized input validation logic.
// This includes object name validation and sanitation, owner identity
// checks, and replication target validation.
//
// All user-supplied names are validated or sanitized before they become
// storage keys, so path traversal sequences and control characters never
// reach a backend.
package validation
