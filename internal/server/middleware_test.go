package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoggingMiddleware_ForwardsFlush(t *testing.T) {
	h := LoggingMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("wrapped writer must remain flushable")
		}
		f.Flush()
	}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/userinfo", nil))

	if !resp.Flushed {
		t.Error("flush must reach the underlying writer")
	}
}

func TestRequestIDMiddleware_SetsHeader(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(RequestIDKey).(string)
	}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/userinfo", nil))

	if seen == "" {
		t.Error("request ID must be in the handler's context")
	}
	if got := resp.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("header %q must match context value %q", got, seen)
	}
}
