package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

type hijackRecorder struct {
	http.ResponseWriter
	called bool
	err    error
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.called = true
	return nil, nil, h.err
}

func TestLoggingKeepsHijackerForWebsocketUpgrades(t *testing.T) {
	wantErr := errors.New("hijack invoked")
	rec := &hijackRecorder{
		ResponseWriter: httptest.NewRecorder(),
		err:            wantErr,
	}

	sawHandler := false
	handler := Logging()(func(w http.ResponseWriter, r *http.Request) {
		sawHandler = true
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("logging wrapper must keep http.Hijacker")
		}
		if _, _, err := hj.Hijack(); !errors.Is(err, wantErr) {
			t.Fatalf("hijack error = %v, want %v", err, wantErr)
		}
	})

	handler(rec, httptest.NewRequest(http.MethodGet, "/api/ws/v1/conversations/conv-1", nil))

	if !sawHandler {
		t.Fatal("inner handler was not invoked")
	}
	if !rec.called {
		t.Fatal("hijack was not forwarded to the underlying writer")
	}
}

func TestLoggingPassesStatusThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	handler := Logging()(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	handler(rec, httptest.NewRequest(http.MethodGet, "/api/admin/v1/health", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}
