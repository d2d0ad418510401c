package resolve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	urlpkg "net/url"
	"strings"

	"github.com/tidwall/gjson"
)

var _ Provider = (*SaveformProvider)(nil)

// SaveformProvider is the legacy public-mirror generation: a form-post
// search endpoint returning a loosely shaped JSON document. It only ever
// yields a single video, so it sits last in the provider order.
type SaveformProvider struct {
	Endpoint string
	Patterns []string
}

var saveformPatterns = []string{
	"tiktok.com/t/*",
	"tiktok.com/@*/video/*",
	"vm.tiktok.com/*",
	"instagram.com/reel/*",
	"instagram.com/reels/*",
}

func (s *SaveformProvider) String() string {
	return fmt.Sprintf("saveform (%s)", s.Endpoint)
}

func (s *SaveformProvider) IsSupported(url string) bool {
	patterns := s.Patterns
	if patterns == nil {
		patterns = saveformPatterns
	}
	return simpleURLMatch(url, patterns)
}

func (s *SaveformProvider) Resolve(ctx context.Context, req Request) (Result, error) {
	if req.Mode == ModeAudio {
		return Result{}, fmt.Errorf("saveform has no audio-only mode")
	}

	form := urlpkg.Values{
		"query": {req.URL},
		"vt":    {"home"},
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	hreq.Header.Set("User-Agent", userAgent)
	hreq.Header.Set("X-Requested-With", "XMLHttpRequest")
	hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	hreq.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(hreq)
	if err != nil {
		return Result{}, fmt.Errorf("sending http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("not OK: %d %s", resp.StatusCode, resp.Status)
	}
	if !gjson.ValidBytes(body) {
		return Result{}, fmt.Errorf("non-JSON reply (%d bytes)", len(body))
	}

	doc := gjson.ParseBytes(body)
	mediaURL := doc.Get("data.links.video.0.url").String()
	if mediaURL == "" {
		return Result{}, fmt.Errorf("no video links in reply")
	}

	name := synthFilename(mediaURL, req.Mode)
	return Result{
		Kind: KindSingle,
		Single: Media{
			MediaURL: mediaURL,
			Filename: name,
			MimeHint: mimeHintFor(name),
			ThumbURL: doc.Get("data.thumbnail").String(),
			Title:    doc.Get("data.title").String(),
		},
	}, nil
}
