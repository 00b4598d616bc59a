package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// hopByHopHeaders are stripped before the request crosses the proxy
// boundary.
var hopByHopHeaders = []string{"Connection", "Upgrade"}

// forward is the catch-all request pipeline: resolve the session, select a
// backend, account the attempt, relay the exchange and stream the response
// back. The active-connection counter is decremented on every exit path.
func (b *Balancer) forward(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		sessionID = cookie.Value
	}
	if sessionID == "" {
		sessionID = NewSessionID(r.RemoteAddr, r.Header.Get("User-Agent"), time.Now())
	}

	backend, err := b.nextBackend(sessionID)
	if err != nil {
		http.Error(w, "No healthy servers available", http.StatusServiceUnavailable)
		return
	}

	backend.AddConnection()
	defer backend.RemoveConnection()
	backend.AddRequest()
	start := time.Now()

	upstreamURL := fmt.Sprintf("http://%s%s", backend.Key(), r.URL.RequestURI())
	req, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL, r.Body)
	if err != nil {
		backend.AddError()
		recordUpstreamError(backend.Key())
		http.Error(w, fmt.Sprintf("Backend error: %v", err), http.StatusBadGateway)
		return
	}
	req.Header = forwardableHeaders(r.Header)
	req.ContentLength = r.ContentLength

	resp, err := b.transport.RoundTrip(req)
	if err != nil {
		if r.Context().Err() != nil || errors.Is(err, context.Canceled) {
			// Client went away; the attempt stays counted but is not an
			// upstream failure.
			b.logger.Debug("request canceled by client",
				zap.String("backend", backend.Key()), zap.String("path", r.URL.Path))
			return
		}
		backend.AddError()
		recordUpstreamError(backend.Key())
		b.logger.Error("upstream request failed",
			zap.String("backend", backend.Key()), zap.Error(err))
		http.Error(w, fmt.Sprintf("Backend error: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	backend.ObserveResponseTime(time.Since(start))

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookieName,
		Value:  sessionID,
		Path:   "/",
		MaxAge: int(b.config.Session.TTL.Seconds()),
	})
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		b.logger.Debug("response stream interrupted",
			zap.String("backend", backend.Key()), zap.Error(err))
	}
	recordRequestMetrics(r.Method, resp.StatusCode, backend.Key(), time.Since(start).Seconds())
}

// forwardableHeaders copies the client headers, preserving multi-valued
// headers in order and dropping hop-by-hop headers.
func forwardableHeaders(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for key, values := range in {
		out[key] = append([]string(nil), values...)
	}
	for _, key := range hopByHopHeaders {
		out.Del(key)
	}
	return out
}
