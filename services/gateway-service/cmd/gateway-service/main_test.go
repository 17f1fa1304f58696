package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopslot/shopslot/libs/httpx"
)

func backend(t *testing.T, name string) (*httptest.Server, *url.URL) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend", name)
		w.Header().Set("X-Seen-Request-Id", r.Header.Get(httpx.RequestIDHeader))
		_, _ = io.WriteString(w, r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return srv, u
}

func TestRoutesReachTheRightUpstream(t *testing.T) {
	_, bookingURL := backend(t, "booking")
	_, calendarURL := backend(t, "calendar")
	mux := http.NewServeMux()
	registerRoutes(mux, upstreams{booking: bookingURL, calendarSync: calendarURL}, http.DefaultTransport)
	h := httpx.WithRequestID(mux)

	cases := map[string]string{
		"/bookings":                    "booking",
		"/bookings/b-1":                "booking",
		"/shops/shop-1/timeslots":      "booking",
		"/reschedule-requests/rr-1":    "booking",
		"/business/bookings":           "booking",
		"/calendar/connect":            "calendar",
		"/oauth2callback?code=c&state": "calendar",
	}
	for target, want := range cases {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set(httpx.RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", target, rec.Code)
		}
		if got := rec.Header().Get("X-Backend"); got != want {
			t.Fatalf("%s: routed to %q, want %q", target, got, want)
		}
		if rec.Header().Get("X-Seen-Request-Id") != "req-42" {
			t.Fatalf("%s: request id not forwarded", target)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown prefix: %d", rec.Code)
	}
}

func TestUpstreamDownIs502(t *testing.T) {
	srv, u := backend(t, "booking")
	srv.Close()
	mux := http.NewServeMux()
	registerRoutes(mux, upstreams{booking: u, calendarSync: u}, http.DefaultTransport)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestParseUpstreamRejectsRelative(t *testing.T) {
	t.Setenv("BOOKING_URL", "booking-service")
	if _, err := parseUpstream("BOOKING_URL", ""); err == nil {
		t.Fatal("expected error for url without scheme")
	}
}
