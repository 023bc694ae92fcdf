package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestApiDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/echo":
			if got := r.Header.Get("X-User-ID"); got != "alice" {
				t.Errorf("X-User-ID = %q, want %q", got, "alice")
			}
			if got := r.Header.Get("X-Extra"); got != "yes" {
				t.Errorf("X-Extra = %q, want %q", got, "yes")
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode request body: %v", err)
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"pong": body["ping"]})
		case "/fail":
			http.Error(w, "boom", http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	origServer, origUser := serverURL, userID
	serverURL, userID = srv.URL, "alice"
	defer func() { serverURL, userID = origServer, origUser }()

	t.Run("round trip with headers", func(t *testing.T) {
		var out map[string]string
		err := apiDo(http.MethodPost, "/echo", map[string]string{"ping": "hi"}, &out, map[string]string{"X-Extra": "yes"})
		if err != nil {
			t.Fatalf("apiDo() error = %v", err)
		}
		if out["pong"] != "hi" {
			t.Errorf("pong = %q, want %q", out["pong"], "hi")
		}
	})

	t.Run("non-2xx surfaces status and body", func(t *testing.T) {
		err := apiDo(http.MethodGet, "/fail", nil, nil, nil)
		if err == nil {
			t.Fatal("apiDo() error = nil, want error")
		}
		if !strings.Contains(err.Error(), "status 502") || !strings.Contains(err.Error(), "boom") {
			t.Errorf("apiDo() error = %q, want status and body in message", err)
		}
	})

	t.Run("nil out skips decoding", func(t *testing.T) {
		if err := apiDo(http.MethodPost, "/echo", map[string]string{"ping": "hi"}, nil, map[string]string{"X-Extra": "yes"}); err != nil {
			t.Errorf("apiDo() error = %v", err)
		}
	})
}

func TestDefaultUserID(t *testing.T) {
	t.Setenv("STEWARD_USER", "")
	if got := defaultUserID(); got != "demo" {
		t.Errorf("defaultUserID() = %q, want %q", got, "demo")
	}

	t.Setenv("STEWARD_USER", "landlady")
	if got := defaultUserID(); got != "landlady" {
		t.Errorf("defaultUserID() = %q, want %q", got, "landlady")
	}
}
