package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/diewo77/invoice-analytics/httpx"
	"github.com/diewo77/invoice-analytics/internal/chat"
	"github.com/diewo77/invoice-analytics/internal/events"
	applog "github.com/diewo77/invoice-analytics/internal/log"
)

type chatRequest struct {
	Query string `json:"query"`
}

type ChatHandler struct {
	dispatcher *chat.Dispatcher
	events     events.Publisher
	now        func() time.Time
	pending    sync.WaitGroup
}

func NewChatHandler(d *chat.Dispatcher, pub events.Publisher) *ChatHandler {
	if pub == nil {
		pub = events.Noop{}
	}
	return &ChatHandler{dispatcher: d, events: pub, now: time.Now}
}

func (h *ChatHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat-with-data", h.query)
	mux.HandleFunc("POST /api/chat-with-data/export", h.export)
}

// readQuery decodes {query}. A body that is not JSON counts as a missing query.
func readQuery(r *http.Request) string {
	var req chatRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return ""
	}
	return req.Query
}

func (h *ChatHandler) query(w http.ResponseWriter, r *http.Request) {
	q := readQuery(r)
	res, err := h.dispatcher.Dispatch(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)

	ctx := context.WithoutCancel(r.Context())
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		h.publish(ctx, q, res)
	}()
}

// Wait blocks until every event started by an answered query is published.
func (h *ChatHandler) Wait() { h.pending.Wait() }

func (h *ChatHandler) export(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "Invalid format", map[string]string{"format": "not_allowed"})
		return
	}
	res, err := h.dispatcher.DispatchLocal(r.Context(), readQuery(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeTable(w, r, h.now(), "chat_"+string(res.Intent), format, res.Columns, res.Data)
}

func (h *ChatHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var qe *chat.QueryError
	switch {
	case errors.Is(err, chat.ErrInvalidRequest):
		httpx.JSONError(w, http.StatusBadRequest, "Query is required", nil)
	case errors.As(err, &qe):
		httpx.JSONError(w, http.StatusInternalServerError, "Failed to process query", qe.Details())
	default:
		applog.FromContext(r.Context()).Error("chat query failed", applog.FieldError, err)
		httpx.JSONError(w, http.StatusInternalServerError, "Failed to process query", err.Error())
	}
}

// publish reports the answer after the response is written. Failures are
// logged only.
func (h *ChatHandler) publish(ctx context.Context, query string, res *chat.Result) {
	ev := events.ChatQueryEvent{
		Query:     query,
		Intent:    string(res.Intent),
		Source:    string(res.Source),
		SQL:       res.SQL,
		Rows:      res.RowCount(),
		Timestamp: h.now().UTC(),
	}
	if err := h.events.Publish(ctx, ev); err != nil {
		applog.FromContext(ctx).Warn("chat query event not published", applog.FieldError, err)
	}
}
