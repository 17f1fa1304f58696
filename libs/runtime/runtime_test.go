package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadyzReportsFailingChecks(t *testing.T) {
	mux := NewBaseMuxWithReady(
		ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }},
		ReadyCheck{Name: "kafka", Check: func(context.Context) error { return errors.New("no brokers") }},
		ReadyCheck{Check: func(context.Context) error { return errors.New("down") }},
	)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "kafka: no brokers") || !strings.Contains(body, "dependency: down") {
		t.Fatalf("unexpected body %q", body)
	}
	if strings.Contains(body, "db") {
		t.Fatalf("healthy check should not be reported: %q", body)
	}
}

func TestHealthzAndEmptyReadyz(t *testing.T) {
	mux := NewBaseMuxWithReady()
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
			t.Fatalf("%s: got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestLoggerLevelAndServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "booking-service", "warn")
	logger.Info("dropped")
	logger.Warn("kept", "booking_id", "b-1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "booking-service" || entry["booking_id"] != "b-1" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if parseLevel("") != slog.LevelInfo {
		t.Fatal("default level should be info")
	}
}
