package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "github.com/diewo77/invoice-analytics/internal/log"
)

func TestJSONError(t *testing.T) {
	rr := httptest.NewRecorder()
	JSONError(rr, http.StatusBadRequest, "Query is required", nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"error":"Query is required"}` {
		t.Errorf("body = %s", got)
	}
}

func TestJSON_NilPayload(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusOK, nil)
	if rr.Body.String() != "null" {
		t.Errorf("body = %q, want null", rr.Body.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"query":"top vendors"}`, false},
		{"empty", ``, true},
		{"not json", `query=top`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst struct {
				Query string `json:"query"`
			}
			err := DecodeJSON(req, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrBadBody) {
				t.Errorf("error should wrap ErrBadBody: %v", err)
			}
		})
	}
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestRequestLogger_SetsRequestIDAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Output: &buf})

	var seen *applog.Logger
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = applog.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("request id header = %q", got)
	}
	if seen == nil {
		t.Fatal("handler did not get a request-scoped logger")
	}
	out := buf.String()
	for _, want := range []string{"request_id=req-123", "status_code=418", "path=/api/stats"} {
		if !strings.Contains(out, want) {
			t.Errorf("access log %q missing %q", out, want)
		}
	}
}

func TestRequestLogger_GeneratesID(t *testing.T) {
	h := RequestLogger(applog.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rr.Header().Get(RequestIDHeader)) != 36 {
		t.Errorf("generated id = %q", rr.Header().Get(RequestIDHeader))
	}
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	t.Run("preflight", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodOptions, "/api/chat-with-data", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rr.Code)
		}
		if called {
			t.Error("preflight must not reach the handler")
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("allow origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
		}
	})

	t.Run("simple request", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		if !called {
			t.Fatal("handler not called")
		}
		var body map[string]string
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil || body["status"] != "ok" {
			t.Errorf("body = %v, err = %v", body, err)
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("missing allow origin")
		}
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "h") }), mk("a"), mk("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Join(order, ",") != "a,b,h" {
		t.Errorf("order = %v", order)
	}
}
