// Package transcribe turns a resolved media URL into a plain-text script:
// download to memory, speech-to-text through the Groq API, then a
// best-effort style rewrite. Results are cached by content digest so an
// identical file never pays for transcription twice.
package transcribe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/savegram/grab-server/store"
	"github.com/savegram/grab-server/tr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	megaByte     = 1024 * 1024
	MaxMediaSize = megaByte * 500

	defaultEndpoint = "https://api.groq.com/openai/v1"
	speechModel     = "whisper-large-v3"
	rewriteModel    = "llama-3.1-8b-instant"
)

var (
	tracer = otel.Tracer("transcribe")

	ErrNoAPIKey = errors.New("speech api key is not configured")
	ErrTooLarge = fmt.Errorf("media is too large to transcribe (limit %d bytes)", MaxMediaSize)
)

// FetchError marks failures to obtain the media bytes, as opposed to
// failures of the speech API itself.
type FetchError struct {
	Err error
}

func (f *FetchError) Error() string { return "could not fetch media: " + f.Err.Error() }
func (f *FetchError) Unwrap() error { return f.Err }

// APIError relays a non-OK speech API reply with its original status.
type APIError struct {
	StatusCode int
	Message    string
}

func (a *APIError) Error() string {
	return fmt.Sprintf("speech api: %d: %s", a.StatusCode, a.Message)
}

type Script struct {
	Raw       string `json:"raw_transcript"`
	Formatted string `json:"formatted_script"`
}

type Transcriber struct {
	APIKey   string
	Endpoint string // defaults to the Groq OpenAI-compatible base

	// Cache is optional. Hits return the previously stored output
	// verbatim; cache errors never fail a request.
	Cache store.Store

	Client *http.Client
}

func (t *Transcriber) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return &http.Client{Timeout: 5 * time.Minute}
}

func (t *Transcriber) endpoint() string {
	if t.Endpoint != "" {
		return t.Endpoint
	}
	return defaultEndpoint
}

func (t *Transcriber) Transcribe(ctx context.Context, mediaURL string) (script Script, err error) {
	ctx, span := tracer.Start(ctx, "transcribe")
	defer tr.End(span, &err)
	span.SetAttributes(attribute.String("media_url", mediaURL))

	if t.APIKey == "" {
		return Script{}, ErrNoAPIKey
	}

	body, err := t.fetchMedia(ctx, mediaURL)
	if err != nil {
		return Script{}, err
	}

	digest := sha256.Sum256(body)
	key := "tr_" + hex.EncodeToString(digest[:]) + ".json"

	if cached, ok := t.cacheGet(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return cached, nil
	}

	raw, err := t.speechToText(ctx, body)
	if err != nil {
		return Script{}, err
	}

	formatted, err := t.rewrite(ctx, raw)
	if err != nil {
		slog.Warn("style rewrite failed, keeping raw transcript", "err", err)
		formatted = raw
	}

	script = Script{Raw: raw, Formatted: formatted}
	t.cachePut(ctx, key, script)
	return script, nil
}

func (t *Transcriber) fetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fetch_media")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Err: fmt.Errorf("not OK: %d %s", resp.StatusCode, resp.Status)}
	}
	if resp.ContentLength > MaxMediaSize {
		return nil, ErrTooLarge
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaSize+1))
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	if len(body) > MaxMediaSize {
		return nil, ErrTooLarge
	}
	if len(body) == 0 {
		return nil, &FetchError{Err: errors.New("empty media body")}
	}

	return body, nil
}

func (t *Transcriber) cacheGet(ctx context.Context, key string) (Script, bool) {
	if t.Cache == nil {
		return Script{}, false
	}
	b, err := t.Cache.Get(ctx, key)
	if err != nil {
		return Script{}, false
	}
	var script Script
	if err := json.Unmarshal(b, &script); err != nil {
		return Script{}, false
	}
	return script, true
}

func (t *Transcriber) cachePut(ctx context.Context, key string, script Script) {
	if t.Cache == nil {
		return
	}
	b, err := json.Marshal(script)
	if err != nil {
		return
	}
	if err := t.Cache.Put(ctx, key, b); err != nil {
		slog.Warn("caching transcript failed", "store", t.Cache.String(), "err", err)
	}
}
