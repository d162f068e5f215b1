//nolint:revive
package common

import (
	"net/http"
	"strconv"
)

// QueryOptions carries the pagination and read flags honored by the
// adaptors and managers.
type QueryOptions struct {
	Limit    int  // 0 means no limit
	Skip     int  // number of results to skip
	Count    bool // fill NumTotalResults even when Limit truncates
	ReadOnly bool // skip defensive copies on cached reads
}

// ParseQueryOptions extracts pagination parameters from an HTTP request.
// Invalid numbers are ignored rather than rejected; pagination is advisory.
func ParseQueryOptions(r *http.Request) QueryOptions {
	opts := QueryOptions{}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Skip = n
		}
	}
	if v := r.URL.Query().Get("count"); v != "" {
		opts.Count = v == "true"
	}
	return opts
}
