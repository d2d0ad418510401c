package resolve

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveformResolvesFirstVideoLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://www.tiktok.com/@user/video/123", r.PostFormValue("query"))
		assert.Equal(t, "home", r.PostFormValue("vt"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"ok","data":{
			"title":"a clip",
			"thumbnail":"https://cdn.test/t.jpg",
			"links":{"video":[
				{"q_text":"HD","url":"https://cdn.test/hd.mp4"},
				{"q_text":"SD","url":"https://cdn.test/sd.mp4"}
			]}
		}}`)
	}))
	t.Cleanup(srv.Close)

	p := &SaveformProvider{Endpoint: srv.URL}
	res, err := p.Resolve(context.Background(), Request{URL: "https://www.tiktok.com/@user/video/123", Mode: ModeAuto})
	require.NoError(t, err)
	assert.Equal(t, KindSingle, res.Kind)
	assert.Equal(t, "https://cdn.test/hd.mp4", res.Single.MediaURL)
	assert.Equal(t, "https://cdn.test/t.jpg", res.Single.ThumbURL)
	assert.Equal(t, "a clip", res.Single.Title)
}

func TestSaveformRejectsEmptyLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"ok","data":{"links":{"video":[]}}}`)
	}))
	t.Cleanup(srv.Close)

	p := &SaveformProvider{Endpoint: srv.URL}
	_, err := p.Resolve(context.Background(), Request{URL: "https://vm.tiktok.com/abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no video links")
}

func TestSaveformRejectsNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>captcha</html>`)
	}))
	t.Cleanup(srv.Close)

	p := &SaveformProvider{Endpoint: srv.URL}
	_, err := p.Resolve(context.Background(), Request{URL: "https://vm.tiktok.com/abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-JSON")
}

func TestSaveformDeclinesAudioMode(t *testing.T) {
	p := &SaveformProvider{Endpoint: "http://unused.test"}
	_, err := p.Resolve(context.Background(), Request{URL: "https://vm.tiktok.com/abc", Mode: ModeAudio})
	require.Error(t, err)
}
