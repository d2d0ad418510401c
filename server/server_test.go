package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/savegram/grab-server/history"
	"github.com/savegram/grab-server/proxy"
	"github.com/savegram/grab-server/resolve"
	"github.com/savegram/grab-server/transcribe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cobaltBody string, cobaltStatus int) (*Server, http.Handler) {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(cobaltStatus)
		io.WriteString(w, cobaltBody)
	}))
	t.Cleanup(upstream.Close)

	srv := &Server{
		Resolver: &resolve.Resolver{
			Providers: []resolve.Provider{&resolve.CobaltProvider{Endpoint: upstream.URL}},
		},
		Proxy:       &proxy.Handler{},
		Transcriber: &transcribe.Transcriber{},
		History:     history.New(history.NewMemStore()),
	}
	return srv, srv.Handler()
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDownloadRewritesThroughProxy(t *testing.T) {
	srv, h := newTestServer(t, `{"status":"redirect","url":"https://cdn.test/v.mp4","filename":"v.mp4"}`, 200)

	rec := postJSON(t, h, "/api/download", `{"url":"https://x.test/p/abc","mode":"auto"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Status   string `json:"status"`
		URL      string `json:"url"`
		Filename string `json:"filename"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "redirect", out.Status)
	assert.Equal(t, "v.mp4", out.Filename)

	require.True(t, strings.HasPrefix(out.URL, "/api/proxy?"), "got %q", out.URL)
	parsed, err := url.Parse(out.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/v.mp4", parsed.Query().Get("url"))
	assert.Equal(t, "v.mp4", parsed.Query().Get("filename"))

	// the successful lookup lands in history
	entries, err := srv.History.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://x.test/p/abc", entries[0].SourceURL)
}

func TestDownloadPickerResponse(t *testing.T) {
	_, h := newTestServer(t, `{"status":"picker","picker":[
		{"url":"https://cdn.test/a.jpg"},
		{"url":"https://cdn.test/b.mp4"}
	]}`, 200)

	rec := postJSON(t, h, "/api/download", `{"url":"https://x.test/p/abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Status string `json:"status"`
		Picker []struct {
			URL  string `json:"url"`
			Type string `json:"type"`
		} `json:"picker"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "picker", out.Status)
	require.Len(t, out.Picker, 2)
	assert.Equal(t, "photo", out.Picker[0].Type)
	assert.Equal(t, "video", out.Picker[1].Type)
	for _, item := range out.Picker {
		assert.True(t, strings.HasPrefix(item.URL, "/api/proxy?"), "got %q", item.URL)
	}
}

func TestDownloadAudioModeForcesMP3Name(t *testing.T) {
	_, h := newTestServer(t, `{"status":"tunnel","url":"https://cdn.test/a","filename":"clip.mp4"}`, 200)

	rec := postJSON(t, h, "/api/download", `{"url":"https://x.test/p/abc","mode":"audio"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Filename string `json:"filename"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "audio.mp3", out.Filename)
}

func TestDownloadRequiresURL(t *testing.T) {
	_, h := newTestServer(t, `{}`, 200)

	rec := postJSON(t, h, "/api/download", `{"mode":"auto"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h, "/api/download", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadAllProvidersFailing(t *testing.T) {
	srv, h := newTestServer(t, `{"status":"error","error":{"code":"error.api.fetch.fail"}}`, 200)

	rec := postJSON(t, h, "/api/download", `{"url":"https://x.test/p/abc"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var out struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out.Error)

	// failures never land in history
	entries, err := srv.History.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTranscribeWithoutConfiguration(t *testing.T) {
	_, h := newTestServer(t, `{}`, 200)

	rec := postJSON(t, h, "/api/transcribe", `{"url":"https://cdn.test/v.mp4"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = postJSON(t, h, "/api/transcribe", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscribeOversizedMedia(t *testing.T) {
	huge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", strconv.FormatInt(transcribe.MaxMediaSize+1, 10))
	}))
	t.Cleanup(huge.Close)

	srv, _ := newTestServer(t, `{}`, 200)
	srv.Transcriber = &transcribe.Transcriber{APIKey: "k"}

	rec := postJSON(t, srv.Handler(), "/api/transcribe", `{"url":"`+huge.URL+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUnwrapProxyURL(t *testing.T) {
	assert.Equal(t, "https://cdn.test/v.mp4", unwrapProxyURL("/api/proxy?url=https%3A%2F%2Fcdn.test%2Fv.mp4&filename=v.mp4"))
	assert.Equal(t, "https://cdn.test/v.mp4", unwrapProxyURL("https://cdn.test/v.mp4"))
	assert.Equal(t, "/something/else", unwrapProxyURL("/something/else"))
}

func TestPageRendersForm(t *testing.T) {
	_, h := newTestServer(t, `{}`, 200)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<form")
}
