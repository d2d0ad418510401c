// Package proxy re-serves upstream media bytes under a same-origin path,
// so the browser can play or save a file without ever touching the
// extraction CDN directly.
package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/tidwall/match"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	tracer    = otel.Tracer("proxy")
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"

	// No client-level timeout: media streams can be long-lived. Request
	// cancellation comes from the inbound request context.
	streamClient = &http.Client{Transport: http.DefaultTransport}
)

// RefererRule attaches a Referer/Origin pair when the upstream host is
// known to reject hotlinked fetches without one.
type RefererRule struct {
	Hosts   []string
	Referer string
	Origin  string
}

var DefaultRefererRules = []RefererRule{
	{
		Hosts:   []string{"*.cdninstagram.com", "*.fbcdn.net", "instagram.com", "*.instagram.com"},
		Referer: "https://www.instagram.com/",
		Origin:  "https://www.instagram.com",
	},
	{
		Hosts:   []string{"*.tiktokcdn.com", "*.tiktokcdn-us.com"},
		Referer: "https://www.tiktok.com/",
		Origin:  "https://www.tiktok.com",
	},
}

// Handler streams GET /api/proxy?url=...&filename=...&download=... and
// answers HEAD identically without a body.
type Handler struct {
	Client       *http.Client
	RefererRules []RefererRule
}

func (h *Handler) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return streamClient
}

func (h *Handler) rules() []RefererRule {
	if h.RefererRules != nil {
		return h.RefererRules
	}
	return DefaultRefererRules
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, span := tracer.Start(r.Context(), "proxy_stream")
	defer span.End()

	query := r.URL.Query()
	raw := query.Get("url")
	if raw == "" || !strings.HasPrefix(raw, "http") {
		jsonError(w, http.StatusBadRequest, "url query parameter is required and must be http(s)")
		return
	}
	upstream, err := url.Parse(raw)
	if err != nil || upstream.Host == "" {
		jsonError(w, http.StatusBadRequest, "url query parameter is not a valid absolute url")
		return
	}

	span.SetAttributes(attribute.String("upstream_host", upstream.Host))

	req, err := http.NewRequestWithContext(ctx, r.Method, raw, nil)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "url query parameter is not a valid absolute url")
		return
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}
	for _, rule := range h.rules() {
		if hostMatch(upstream.Hostname(), rule.Hosts) {
			req.Header.Set("Referer", rule.Referer)
			req.Header.Set("Origin", rule.Origin)
			break
		}
	}

	resp, err := h.client().Do(req)
	if err != nil {
		span.RecordError(err)
		jsonError(w, http.StatusBadGateway, "failed to fetch media")
		return
	}
	defer resp.Body.Close()

	relayHeader(w, resp, "Content-Type")
	relayHeader(w, resp, "Content-Length")
	relayHeader(w, resp, "Content-Range")
	relayHeader(w, resp, "Accept-Ranges")
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	// error relays must stay uncacheable
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	}
	w.Header().Set("Content-Disposition", disposition(query, upstream))

	w.WriteHeader(resp.StatusCode)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Too late for a status code, the client likely went away.
		span.RecordError(err)
	}
}

func relayHeader(w http.ResponseWriter, resp *http.Response, name string) {
	if v := resp.Header.Get(name); v != "" {
		w.Header().Set(name, v)
	}
}

func disposition(query url.Values, upstream *url.URL) string {
	kind := "inline"
	if query.Get("download") == "true" {
		kind = "attachment"
	}

	filename := filepath.Base(query.Get("filename"))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = path.Base(upstream.Path)
		if filename == "" || filename == "." || filename == "/" {
			filename = "download"
		}
	}

	return fmt.Sprintf("%s; filename=%q", kind, filename)
}

func hostMatch(host string, patterns []string) bool {
	for _, p := range patterns {
		if match.Match(host, p) {
			return true
		}
	}
	return false
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
