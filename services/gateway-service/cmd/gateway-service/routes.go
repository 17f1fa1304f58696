package main

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/shopslot/shopslot/libs/config"
	"github.com/shopslot/shopslot/libs/httpx"
)

type upstreams struct {
	booking      *url.URL
	calendarSync *url.URL
}

func loadUpstreams() (upstreams, error) {
	booking, err := parseUpstream("BOOKING_URL", "http://booking-service:8083")
	if err != nil {
		return upstreams{}, err
	}
	calendarSync, err := parseUpstream("CALENDAR_SYNC_URL", "http://calendar-sync-service:8087")
	if err != nil {
		return upstreams{}, err
	}
	return upstreams{booking: booking, calendarSync: calendarSync}, nil
}

func parseUpstream(key, fallback string) (*url.URL, error) {
	raw := config.String(key, fallback)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: invalid upstream url %q", key, raw)
	}
	return u, nil
}

// registerRoutes forwards by path prefix. Upstreams verify the bearer token
// again; the gateway only rejects bad tokens early.
func registerRoutes(mux *http.ServeMux, up upstreams, transport http.RoundTripper) {
	booking := newProxy(up.booking, transport)
	calendarSync := newProxy(up.calendarSync, transport)

	for _, prefix := range []string{"/bookings", "/shops/", "/reschedule-requests/", "/business/"} {
		registerProxy(mux, prefix, booking)
	}
	registerProxy(mux, "/calendar/", calendarSync)
	mux.Handle("/oauth2callback", calendarSync)
}

func newProxy(target *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if id := httpx.RequestIDFromContext(pr.In.Context()); id != "" {
				pr.Out.Header.Set(httpx.RequestIDHeader, id)
			}
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, _ *http.Request, _ error) {
			httpx.WriteError(w, http.StatusBadGateway, "upstream_unavailable", "upstream unavailable")
		},
	}
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if prefix[len(prefix)-1] != '/' {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}
