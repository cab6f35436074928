package client

import (
	"net/http"
)

// HeaderSource decorates outgoing requests with session credentials.
// Acquiring the session (cookies, XSRF token) happens elsewhere.
type HeaderSource interface {
	Apply(h http.Header)
}

// SessionHeaders is a fixed set of credentials captured by an external
// bootstrap step.
type SessionHeaders struct {
	Cookie       string
	XSRFToken    string
	BuildVersion string
	// Extra headers are applied last and may override the fields above.
	Extra map[string]string
}

// Apply implements HeaderSource. Empty fields are skipped.
func (s SessionHeaders) Apply(h http.Header) {
	if s.Cookie != "" {
		h.Set("Cookie", s.Cookie)
	}
	if s.XSRFToken != "" {
		h.Set("X-XSRF-TOKEN", s.XSRFToken)
	}
	if s.BuildVersion != "" {
		h.Set("X-Kaggle-Build-Version", s.BuildVersion)
	}
	for k, v := range s.Extra {
		h.Set(k, v)
	}
}
