// Package server is the inbound HTTP surface: the download resolution
// endpoint, the media proxy, the transcription endpoint, and a single-page
// tester UI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/savegram/grab-server/history"
	"github.com/savegram/grab-server/proxy"
	"github.com/savegram/grab-server/resolve"
	"github.com/savegram/grab-server/transcribe"
)

// ResolveDeadline bounds one whole provider walk, on top of the
// per-attempt timeout inside the resolver.
const ResolveDeadline = 45 * time.Second

type Server struct {
	Resolver    *resolve.Resolver
	Proxy       *proxy.Handler
	Transcriber *transcribe.Transcriber
	History     *history.List
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/download", s.handleDownload)
	mux.Handle("/api/proxy", s.Proxy)
	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	mux.HandleFunc("/", s.handlePage)
	return mux
}

type downloadRequest struct {
	URL  string `json:"url"`
	Mode string `json:"mode"`
}

type downloadResponse struct {
	Status   string       `json:"status"`
	URL      string       `json:"url,omitempty"`
	Filename string       `json:"filename,omitempty"`
	Thumb    string       `json:"thumb,omitempty"`
	Picker   []pickerItem `json:"picker,omitempty"`
}

type pickerItem struct {
	URL   string `json:"url"`
	Type  string `json:"type"`
	Thumb string `json:"thumb,omitempty"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	mode := resolve.Mode(req.Mode)
	if mode == "" {
		mode = resolve.ModeAuto
	}

	ctx, cancel := context.WithTimeout(r.Context(), ResolveDeadline)
	defer cancel()

	res, err := s.Resolver.Resolve(ctx, resolve.Request{URL: req.URL, Mode: mode})
	if err != nil {
		switch {
		case errors.Is(err, resolve.ErrBadURL), errors.Is(err, resolve.ErrUnsupported):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("resolution failed", "url", req.URL, "err", err)
			writeError(w, http.StatusServiceUnavailable, "all download servers failed, check the url or try again later")
		}
		return
	}

	out := s.presentResult(res, mode)
	s.recordHistory(req.URL, res, out)
	writeJSON(w, http.StatusOK, out)
}

// presentResult rewrites every upstream URL through the proxy so the
// browser only ever sees same-origin links.
func (s *Server) presentResult(res resolve.Result, mode resolve.Mode) downloadResponse {
	switch res.Kind {
	case resolve.KindPicker:
		out := downloadResponse{Status: "picker", Picker: make([]pickerItem, len(res.Items))}
		for i, item := range res.Items {
			out.Picker[i] = pickerItem{
				URL:  s.ProxyURL(item.MediaURL, pickerFilename(item, i)),
				Type: string(item.Kind),
			}
			if item.ThumbURL != "" {
				out.Picker[i].Thumb = s.ProxyURL(item.ThumbURL, "thumbnail.jpg")
			}
		}
		return out
	default:
		media := res.Single
		filename := media.Filename
		if mode == resolve.ModeAudio && !strings.HasSuffix(filename, ".mp3") {
			filename = "audio.mp3"
		}
		out := downloadResponse{
			Status:   "redirect",
			URL:      s.ProxyURL(media.MediaURL, filename),
			Filename: filename,
		}
		if media.ThumbURL != "" {
			out.Thumb = s.ProxyURL(media.ThumbURL, "thumbnail.jpg")
		}
		return out
	}
}

func pickerFilename(item resolve.PickerItem, i int) string {
	ext := ".mp4"
	if item.Kind == resolve.ItemPhoto {
		ext = ".jpg"
	}
	return fmt.Sprintf("item_%d%s", i+1, ext)
}

// ProxyURL builds a same-origin proxy path for an upstream media URL.
func (s *Server) ProxyURL(upstream, filename string) string {
	q := url.Values{}
	q.Set("url", upstream)
	if filename != "" {
		q.Set("filename", filename)
	}
	return "/api/proxy?" + q.Encode()
}

func (s *Server) recordHistory(sourceURL string, res resolve.Result, out downloadResponse) {
	if s.History == nil {
		return
	}

	entry := history.Entry{
		SourceURL: sourceURL,
		Timestamp: time.Now().UTC(),
	}
	switch res.Kind {
	case resolve.KindPicker:
		entry.Kind = "picker"
		entry.Title = "Gallery"
		for _, item := range out.Picker {
			entry.Picker = append(entry.Picker, history.PickerRef{URL: item.URL, Kind: item.Type})
		}
	default:
		entry.Kind = string(itemKindOf(res.Single))
		entry.Title = res.Single.Title
		if entry.Title == "" {
			entry.Title = res.Single.Filename
		}
		entry.DownloadURL = out.URL
		entry.ThumbURL = out.Thumb
	}

	if err := s.History.Add(entry); err != nil {
		slog.Warn("recording history failed", "url", sourceURL, "err", err)
	}
}

func itemKindOf(media resolve.Media) resolve.ItemKind {
	switch media.MimeHint {
	case "image/jpeg", "image/png", "image/webp":
		return resolve.ItemPhoto
	default:
		return resolve.ItemVideo
	}
}

type transcribeRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	script, err := s.Transcriber.Transcribe(r.Context(), unwrapProxyURL(req.URL))
	if err != nil {
		var apiErr *transcribe.APIError
		var fetchErr *transcribe.FetchError
		switch {
		case errors.Is(err, transcribe.ErrNoAPIKey):
			writeError(w, http.StatusInternalServerError, "transcription is not configured")
		case errors.Is(err, transcribe.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "media is too large to transcribe")
		case errors.As(err, &fetchErr):
			writeError(w, http.StatusBadGateway, "could not fetch media")
		case errors.As(err, &apiErr):
			writeError(w, apiErr.StatusCode, "speech api rejected the request")
		default:
			slog.Error("transcription failed", "url", req.URL, "err", err)
			writeError(w, http.StatusInternalServerError, "transcription failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"script": script.Formatted,
		"raw":    script.Raw,
	})
}

// unwrapProxyURL turns a same-origin /api/proxy?url=... link back into the
// upstream media URL so the adapter fetches the bytes directly.
func unwrapProxyURL(raw string) string {
	if !strings.HasPrefix(raw, "/") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if upstream := u.Query().Get("url"); upstream != "" {
		return upstream
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
