package resolve

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

var _ Provider = (*CobaltProvider)(nil)

// CobaltProvider speaks the cobalt v10 API. The same type serves both the
// public instances and the internal container instance: the internal hop
// carries no extra headers beyond content negotiation and the optional
// api key.
type CobaltProvider struct {
	Endpoint string
	APIKey   string

	// Patterns gates the URLs handed to this instance. Nil accepts any
	// absolute http(s) URL and lets the instance decide.
	Patterns []string
}

// DefaultPatterns covers the services the public cobalt instances handle
// reliably.
var DefaultPatterns = []string{
	"instagram.com/reel/*",
	"instagram.com/reels/*",
	"instagram.com/p/*",
	"instagram.com/stories/*",
	"tiktok.com/t/*",
	"tiktok.com/@*/video/*",
	"vm.tiktok.com/*",
	"twitter.com/*/status/*",
	"t.co/*",
	"x.com/*/status/*",
	"bsky.app/profile/*/post/*",
	"twitch.tv/*/clip/*",
	"youtube.com/shorts/*",
	"youtube.com/watch*",
	"youtu.be/*",
	"facebook.com/*",
	"fb.watch/*",
	"reddit.com/r/*/comments/*",
	"old.reddit.com/r/*/comments/*",
	"redd.it/*",
	"v.redd.it/*",
}

func (c *CobaltProvider) String() string {
	return fmt.Sprintf("cobalt (%s)", c.Endpoint)
}

func (c *CobaltProvider) IsSupported(url string) bool {
	if c.Patterns == nil {
		return absoluteHTTP(url)
	}
	return simpleURLMatch(url, c.Patterns)
}

type cobaltRequest struct {
	Url           string `json:"url"`
	VideoQuality  string `json:"videoQuality,omitempty"`
	FilenameStyle string `json:"filenameStyle,omitempty"`
	DownloadMode  string `json:"downloadMode,omitempty"`
	IsAudioOnly   bool   `json:"isAudioOnly,omitempty"`
	AudioFormat   string `json:"audioFormat,omitempty"`
}

type cobaltResponse struct {
	Status   string             `json:"status"` // tunnel / stream / redirect / picker / error
	Url      string             `json:"url"`
	Filename string             `json:"filename"`
	Thumb    string             `json:"thumb"`
	Text     string             `json:"text"`
	Picker   []cobaltPickerItem `json:"picker"`
	Error    struct {
		Code string `json:"code"`
	} `json:"error"`
}

type cobaltPickerItem struct {
	Type  string `json:"type"` // photo / video / gif
	Url   string `json:"url"`
	Thumb string `json:"thumb"`
}

type CobaltError struct {
	Status string `json:"status"`
	Text   string `json:"text"`
	Err    struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (ce CobaltError) Error() string {
	if ce.Err.Code != "" {
		return "cobalt error: " + ce.Err.Code
	}
	if ce.Text != "" {
		return "cobalt error: " + ce.Text
	}
	return "cobalt error"
}

func (c *CobaltProvider) Resolve(ctx context.Context, req Request) (Result, error) {
	body := cobaltRequest{
		Url:           req.URL,
		VideoQuality:  "1080",
		FilenameStyle: "basic",
	}
	if req.Mode == ModeAudio {
		body.DownloadMode = "audio"
		body.IsAudioOnly = true
		body.AudioFormat = "mp3"
	}

	var headers []string
	if c.APIKey != "" {
		headers = []string{"Authorization", "Api-Key " + c.APIKey}
	}

	_, value, err := JSONRequest[cobaltResponse, CobaltError](ctx, http.MethodPost, c.Endpoint, body, headers...)
	if err != nil {
		return Result{}, fmt.Errorf("making cobalt request: %w", err)
	}

	return normalizeCobalt(value, req.Mode)
}

// normalizeCobalt maps the closed set of cobalt reply shapes onto Result.
// Some mirrors report errors with HTTP 200, so the status field is the
// source of truth here.
func normalizeCobalt(res *cobaltResponse, mode Mode) (Result, error) {
	switch res.Status {
	case "tunnel", "stream", "redirect":
		name := res.Filename
		if name == "" {
			name = synthFilename(res.Url, mode)
		}
		return Result{
			Kind: KindSingle,
			Single: Media{
				MediaURL: res.Url,
				Filename: name,
				MimeHint: mimeHintFor(name),
				ThumbURL: res.Thumb,
			},
		}, nil
	case "picker":
		items := make([]PickerItem, len(res.Picker))
		for i, p := range res.Picker {
			items[i] = PickerItem{
				MediaURL: p.Url,
				Kind:     itemKind(p.Type, p.Url),
				ThumbURL: p.Thumb,
			}
		}
		return Result{Kind: KindPicker, Items: items}, nil
	case "error":
		ce := CobaltError{Status: res.Status, Text: res.Text}
		ce.Err.Code = res.Error.Code
		return Result{}, ce
	default:
		return Result{}, fmt.Errorf("unexpected cobalt response status: %q", res.Status)
	}
}

func mimeHintFor(filename string) string {
	filename = strings.ToLower(filename)
	switch {
	case strings.HasSuffix(filename, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(filename, ".jpg"), strings.HasSuffix(filename, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(filename, ".png"):
		return "image/png"
	case strings.HasSuffix(filename, ".webp"):
		return "image/webp"
	case strings.HasSuffix(filename, ".webm"):
		return "video/webm"
	default:
		return "video/mp4"
	}
}
