package common

import "time"

// GetCurrentTimestamp returns the current time in the catalog's compact
// yyyyMMddHHmmss form, the format OpenCGA stamps on status transitions.
func GetCurrentTimestamp() string {
	return time.Now().Format("20060102150405")
}
