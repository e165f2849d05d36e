package security

import (
	"net/http"
	"strconv"
)

// HeadersConfig lists the response headers set on every reply. Empty values
// are left out.
type HeadersConfig struct {
	CSP                 string
	FrameOptions        string
	ContentTypeOptions  string
	ReferrerPolicy      string
	CrossOriginResource string
	CacheControl        string

	// HSTS is only sent on TLS connections. Zero disables it.
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

// DefaultHeadersConfig returns headers suited to a JSON API: nothing may be
// framed, sniffed or cached by intermediaries.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:          "DENY",
		ContentTypeOptions:    "nosniff",
		ReferrerPolicy:        "no-referrer",
		CrossOriginResource:   "same-origin",
		CacheControl:          "no-store",
		HSTSMaxAge:            365 * 24 * 3600,
		HSTSIncludeSubdomains: true,
	}
}

type header struct{ name, value string }

type HeadersMiddleware struct {
	always []header
	hsts   string
}

// NewHeadersMiddleware renders the header values once; requests only copy
// them.
func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{}
	for _, hv := range []header{
		{"Content-Security-Policy", config.CSP},
		{"X-Frame-Options", config.FrameOptions},
		{"X-Content-Type-Options", config.ContentTypeOptions},
		{"Referrer-Policy", config.ReferrerPolicy},
		{"Cross-Origin-Resource-Policy", config.CrossOriginResource},
		{"Cache-Control", config.CacheControl},
	} {
		if hv.value != "" {
			h.always = append(h.always, hv)
		}
	}
	if config.HSTSMaxAge > 0 {
		h.hsts = "max-age=" + strconv.Itoa(config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			h.hsts += "; includeSubDomains"
		}
	}
	return h
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dst := w.Header()
		for _, hv := range h.always {
			dst.Set(hv.name, hv.value)
		}
		if r.TLS != nil && h.hsts != "" {
			dst.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}
