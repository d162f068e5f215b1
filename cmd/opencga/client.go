package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/nicholsn/opencga/internal/catalog/api"
	"github.com/nicholsn/opencga/internal/common"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// queryEntry is the client side view of one envelope entry.
type queryEntry struct {
	ID         string                `json:"id"`
	NumResults int                   `json:"numResults"`
	ErrorMsg   string                `json:"errorMsg"`
	Result     []jsoniter.RawMessage `json:"result"`
}

type queryResponse struct {
	Error    string       `json:"error"`
	Response []queryEntry `json:"response"`
}

// client is the thin REST wrapper over the catalog daemon.
type client struct {
	base string
	user string
	http *http.Client
}

func newClient(session Session) *client {
	return &client{
		base: session.URL,
		user: session.User,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) get(path string) (*queryResponse, error) {
	return c.call(http.MethodGet, path, nil)
}

func (c *client) post(path string, body any) (*queryResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error encoding request body")
	}
	return c.call(http.MethodPost, path, raw)
}

func (c *client) call(method, path string, body []byte) (*queryResponse, error) {
	req, err := http.NewRequest(method, c.base+"/v1"+path, bytes.NewReader(body))
	if err != nil {
		return nil, common.NewInternalServerError(err, "error building request")
	}
	if c.user != "" {
		req.Header.Set(api.PrincipalHeader, c.user)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error reaching the catalog daemon at %s", c.base)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error reading response")
	}
	var decoded queryResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, common.NewInternalServerError(err, "unexpected response from the catalog daemon")
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("%s", decoded.Error)
	}
	return &decoded, nil
}

// printResponse renders each envelope entry as indented JSON. Entries that
// failed in silent mode are reported on their own line.
func printResponse(out io.Writer, resp *queryResponse) error {
	for _, entry := range resp.Response {
		if entry.ErrorMsg != "" {
			fmt.Fprintf(out, "%s: %s\n", entry.ID, entry.ErrorMsg)
			continue
		}
		for _, item := range entry.Result {
			pretty, err := json.MarshalIndent(jsoniter.RawMessage(item), "", "  ")
			if err != nil {
				return common.NewInternalServerError(err, "error rendering result")
			}
			fmt.Fprintln(out, string(pretty))
		}
	}
	return nil
}
