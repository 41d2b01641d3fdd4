package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := Recovery(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status code %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if logs.FilterMessage("Panic recovered").Len() != 1 {
		t.Errorf("Expected the panic to be logged")
	}
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		level   zapcore.Level
		message string
	}{
		{name: "ok", status: http.StatusOK, level: zapcore.DebugLevel, message: "Request"},
		{name: "client error", status: http.StatusNotFound, level: zapcore.WarnLevel, message: "Client error"},
		{name: "server error", status: http.StatusBadGateway, level: zapcore.ErrorLevel, message: "Server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			handler := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/path", nil))

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("Expected one log entry, got %d", len(entries))
			}
			if entries[0].Message != tt.message || entries[0].Level != tt.level {
				t.Errorf("Expected %s %q, got %s %q", tt.level, tt.message, entries[0].Level, entries[0].Message)
			}
			if entries[0].ContextMap()["status"] != int64(tt.status) {
				t.Errorf("Expected status field %d, got %v", tt.status, entries[0].ContextMap()["status"])
			}
		})
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"}, []string{"GET", "POST"}, []string{"Content-Type"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected preflight status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Methods") != "GET, POST" {
		t.Errorf("Unexpected allowed methods %q", w.Header().Get("Access-Control-Allow-Methods"))
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected handler status %d, got %d", http.StatusNoContent, w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("Unexpected allowed origin %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestMaxBodySize(t *testing.T) {
	handler := MaxBodySize(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, "too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader("0123456789")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status %d, got %d", http.StatusRequestEntityTooLarge, w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader("ok")))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}
