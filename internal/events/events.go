// Package events publishes notifications about answered chat queries.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// ChatQueryEvent describes one answered chat query.
type ChatQueryEvent struct {
	Query     string    `json:"query"`
	Intent    string    `json:"intent,omitempty"`
	Source    string    `json:"source"`
	SQL       string    `json:"sql,omitempty"`
	Rows      int       `json:"rows"`
	Timestamp time.Time `json:"timestamp"`
}

func (e ChatQueryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, ev ChatQueryEvent) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, ChatQueryEvent) error { return nil }
func (Noop) Close() error                                  { return nil }
