package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPDelegate_PostsQuery(t *testing.T) {
	var gotPath, gotQuery, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		var body struct {
			Query string `json:"query"`
		}
		json.Unmarshal(b, &body)
		gotQuery = body.Query
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sql":"SELECT 1","data":[{"a":1}]}` + "\n"))
	}))
	defer srv.Close()

	d := NewHTTPDelegate(srv.URL+"/", time.Second)
	raw, err := d.Query(context.Background(), "top vendors")
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/query" || gotQuery != "top vendors" || gotCT != "application/json" {
		t.Errorf("request path=%q query=%q content-type=%q", gotPath, gotQuery, gotCT)
	}
	if string(raw) != `{"sql":"SELECT 1","data":[{"a":1}]}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestHTTPDelegate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>proxy error</html>"))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			d := NewHTTPDelegate(srv.URL, 50*time.Millisecond)
			_, err := d.Query(context.Background(), "q")
			if !errors.Is(err, ErrDelegateUnavailable) {
				t.Errorf("err = %v, want ErrDelegateUnavailable", err)
			}
		})
	}
}

func TestHTTPDelegate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPDelegate(url, 100*time.Millisecond).Query(context.Background(), "q")
	if !errors.Is(err, ErrDelegateUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestNewHTTPDelegate_DefaultTimeout(t *testing.T) {
	d := NewHTTPDelegate("http://vanna:8000", 0)
	if d.timeout != DefaultDelegateTimeout {
		t.Errorf("timeout = %v", d.timeout)
	}
	if d.Endpoint() != "http://vanna:8000/query" {
		t.Errorf("endpoint = %q", d.Endpoint())
	}
}
