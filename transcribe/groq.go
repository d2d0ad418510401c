package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/tidwall/gjson"
)

// stylePrompt steers whisper toward romanized mixed-language output. The
// exact wording is a tunable, not a contract.
const stylePrompt = "Namaste dosto, swagat hai aapka is nayi video mein. Aaj hum baat karenge AI, Tech, aur viral content ke baare mein."

const rewriteSystemPrompt = `You rewrite transcripts as Romanized Hinglish scripts.

Rules:
- Never use Devanagari characters; only English alphabets (A-Z).
- Transliterate Hindi words with English letters ("Sikhna hai", not the Hindi script).
- Keep technical terms in English (Trading, Books, Scam, Psychology).
- Conversational tone, like an Indian YouTuber.

Output only the script: a hook line, 3-4 brief bullet points, and a final CTA, all in Roman Hinglish.`

func (t *Transcriber) speechToText(ctx context.Context, media []byte) (text string, err error) {
	ctx, span := tracer.Start(ctx, "speech_to_text")
	defer span.End()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "audio.mp4")
	if err != nil {
		return "", fmt.Errorf("building multipart form: %w", err)
	}
	if _, err := part.Write(media); err != nil {
		return "", fmt.Errorf("building multipart form: %w", err)
	}
	fields := [][2]string{
		{"model", speechModel},
		{"prompt", stylePrompt},
		{"temperature", "0"},
		{"response_format", "json"},
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("building multipart form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("building multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint()+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	resp, err := t.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("sending speech request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading speech response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parsing speech response: %w", err)
	}

	return out.Text, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (t *Transcriber) rewrite(ctx context.Context, transcript string) (string, error) {
	ctx, span := tracer.Start(ctx, "style_rewrite")
	defer span.End()

	creq := chatRequest{
		Model: rewriteModel,
		Messages: []chatMessage{
			{Role: "system", Content: rewriteSystemPrompt},
			{Role: "user", Content: "Convert this text to Romanized Hinglish:\n\n" + transcript},
		},
		Temperature: 0,
		MaxTokens:   1024,
	}
	payload, err := json.Marshal(creq)
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint()+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	resp, err := t.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("sending chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	content := gjson.GetBytes(body, "choices.0.message.content").String()
	if content == "" {
		return "", fmt.Errorf("empty chat completion")
	}
	return content, nil
}
