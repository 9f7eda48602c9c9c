package dberrors

import "strings"

// The driver-error substring markers this module centralizes, per the
// design note that implementers should not scatter .includes(...) checks.
const (
	markerUnsupportedPS    = "not supported"
	markerDoesNotExist     = "doesn't exist"
	markerUnknownTable     = "Unknown table"
	markerUnknownEvent     = "Unknown event"
	markerDuplicateKey     = "Duplicate key name"
	markerDuplicateColumn  = "Duplicate column name"
	markerQueryFailedPfx   = "Query failed: "
	markerExecuteFailedPfx = "Execute failed: "
)

// IsUnsupportedPreparedStatement reports whether the driver rejected the
// statement because it cannot run under the binary/prepared protocol —
// the one case the executor retries, exactly once, on the text protocol.
func IsUnsupportedPreparedStatement(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), markerUnsupportedPS)
}

// IsMissingEntity reports whether the driver error indicates the referenced
// table/event/object does not exist, the signal handlers use to return
// {exists: false} instead of propagating an exception.
func IsMissingEntity(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, markerDoesNotExist) ||
		strings.Contains(msg, markerUnknownTable) ||
		strings.Contains(msg, markerUnknownEvent)
}

// IsDuplicate reports whether the driver error indicates an "already
// exists" condition for a key/column/name.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, markerDuplicateKey) || strings.Contains(msg, markerDuplicateColumn)
}

// Sanitize strips the leading "Query failed: " / "Execute failed: " prefix
// a wrapped driver message may carry, so client-facing error strings read
// cleanly.
func Sanitize(msg string) string {
	msg = strings.TrimPrefix(msg, markerQueryFailedPfx)
	msg = strings.TrimPrefix(msg, markerExecuteFailedPfx)
	return msg
}
