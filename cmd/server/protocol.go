// Package main provides a TCP and HTTP query server for ShopQL.
package main

import (
	"encoding/json"
	"strings"

	"github.com/nickyhof/ShopQL/db"
)

// Request is a query from the client. Clients may also send the bare query
// text on a line of its own.
type Request struct {
	Query string `json:"query"`
	Seq   *int64 `json:"seq,omitempty"`
}

// Response is the server's reply to one request line.
type Response struct {
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Type      string          `json:"type,omitempty"` // "query", "auth" or "stats"
	Seq       *int64          `json:"seq,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// QueryResponse contains formatted tabular query results.
type QueryResponse struct {
	Columns   []string   `json:"columns"`
	Data      [][]string `json:"data"`
	RowCount  int        `json:"row_count"`
	Truncated bool       `json:"truncated,omitempty"`
	Notice    string     `json:"notice,omitempty"`
	TimeMs    float64    `json:"time_ms"`
}

// AuthResponse is returned after a successful AUTH command.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

func newQueryResponse(result db.QueryResult) QueryResponse {
	data := result.Rows
	if data == nil {
		data = [][]string{}
	}
	return QueryResponse{
		Columns:   result.Columns,
		Data:      data,
		RowCount:  result.RowCount,
		Truncated: result.Truncated,
		Notice:    result.Notice(),
		TimeMs:    result.ExecutionTimeSec * 1000,
	}
}

// queryResult wraps a query result in a successful Response.
func queryResult(result db.QueryResult) Response {
	data, _ := json.Marshal(newQueryResponse(result))
	return Response{
		Success: true,
		Type:    "query",
		Result:  data,
	}
}

// queryError wraps an engine error in a failed Response.
func queryError(err error) Response {
	return Response{
		Success:   false,
		Type:      "query",
		Error:     err.Error(),
		ErrorKind: db.ErrorKind(err),
	}
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a request line. A line that is not a JSON object is
// taken as the query text.
func DecodeRequest(data []byte) (Request, error) {
	line := strings.TrimSpace(string(data))
	if !strings.HasPrefix(line, "{") {
		return Request{Query: line}, nil
	}

	var req Request
	err := json.Unmarshal([]byte(line), &req)
	req.Query = strings.TrimSpace(req.Query)
	return req, err
}
