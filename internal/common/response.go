//nolint:revive
package common

// QueryResult is the typed result of one catalog operation: the items, the
// count actually returned, the total available when counting was requested,
// and the time the metadata store spent serving it.
type QueryResult[T any] struct {
	ID              string `json:"id"`
	DBTime          int    `json:"dbTime"`
	NumResults      int    `json:"numResults"`
	NumTotalResults int64  `json:"numTotalResults"`
	WarningMsg      string `json:"warningMsg,omitempty"`
	ErrorMsg        string `json:"errorMsg,omitempty"`
	Result          []T    `json:"result"`
}

// NewQueryResult builds a result over items, counting them as the total.
func NewQueryResult[T any](id string, dbTime int, items []T) QueryResult[T] {
	return QueryResult[T]{
		ID:              id,
		DBTime:          dbTime,
		NumResults:      len(items),
		NumTotalResults: int64(len(items)),
		Result:          items,
	}
}

// ErrorResult marks one entry of a bulk response as failed (silent mode).
func ErrorResult[T any](id string, err error) QueryResult[T] {
	return QueryResult[T]{ID: id, ErrorMsg: err.Error(), Result: []T{}}
}

// QueryResponse is the envelope the REST collaborator wraps around one or
// more query results. A non-empty Error means the whole request failed.
type QueryResponse struct {
	Error    string `json:"error"`
	Response []any  `json:"response"`
}
