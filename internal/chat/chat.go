// Package chat answers free-text questions about the invoice data.
//
// A query is first offered to an optional external delegate. When there is
// none, or it fails, the query is classified by an ordered list of keyword
// rules and answered with one of a fixed set of aggregates.
package chat

import (
	"context"
	"encoding/json"
)

// Row is one result object keyed by column name.
type Row map[string]any

// Store runs the aggregate behind a Plan. Amounts in the returned rows are
// absolute values.
type Store interface {
	Run(ctx context.Context, plan Plan) ([]Row, error)
}

// Delegate is an external natural-language-to-SQL service. A successful
// answer is passed to the caller unchanged.
type Delegate interface {
	Query(ctx context.Context, text string) (json.RawMessage, error)
}

// Source tells where an answer came from.
type Source string

const (
	SourceDelegate Source = "delegate"
	SourceLocal    Source = "local"
)

// Result is the answer to a query. It marshals to {"sql": ..., "data": [...]},
// or to the delegate's body verbatim when the delegate answered.
type Result struct {
	SQL     string
	Data    []Row
	Intent  Intent
	Source  Source
	Columns []string

	raw json.RawMessage
}

type envelope struct {
	SQL  string `json:"sql"`
	Data []Row  `json:"data"`
}

func (r *Result) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	data := r.Data
	if data == nil {
		data = []Row{}
	}
	return json.Marshal(envelope{SQL: r.SQL, Data: data})
}

// RowCount is the number of rows in the answer. For delegate answers it is
// read from the body's "data" array when there is one.
func (r *Result) RowCount() int {
	if r.raw == nil {
		return len(r.Data)
	}
	var body struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(r.raw, &body); err != nil {
		return 0
	}
	return len(body.Data)
}
