// Package murf provides a synthesis back-end on the Murf speech API.
package murf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vocora/vocora/pkg/ai"
	"github.com/vocora/vocora/pkg/ai/tts"
)

const defaultBaseURL = "https://global.api.murf.ai"

// DefaultVoice is used when a request does not name a voice.
const DefaultVoice = "en-US-terrell"

// voiceConfig is the per-voice synthesis tuning.
type voiceConfig struct {
	ID        string
	Style     string
	Speed     int
	Pitch     int
	Variation int
}

var voices = map[string]voiceConfig{
	"en-US-terrell": {ID: "en-US-terrell", Style: "Conversational", Variation: 1},
	"en-US-michael": {ID: "en-US-michael", Style: "Conversational", Variation: 1},
	"en-US-wayne":   {ID: "en-US-wayne", Style: "Conversational", Variation: 1},
	"en-US-ryan":    {ID: "en-US-ryan", Style: "Conversational", Variation: 1},
	"en-US-natalie": {ID: "en-US-natalie", Style: "Conversational", Variation: 1},
	"en-US-lily":    {ID: "en-US-lily", Style: "Conversational", Variation: 1},
	"en-US-claire":  {ID: "en-US-claire", Style: "Conversational", Variation: 1},
	"en-GB-william": {ID: "en-GB-william", Style: "Conversational", Variation: 1},
	"en-GB-emma":    {ID: "en-GB-emma", Style: "Conversational", Variation: 1},
}

// Voices lists the supported voice identifiers.
func Voices() []string {
	out := make([]string, 0, len(voices))
	for id := range voices {
		out = append(out, id)
	}
	return out
}

// IsVoice reports whether id names a supported voice.
func IsVoice(id string) bool {
	_, ok := voices[id]
	return ok
}

type synthesizeRequest struct {
	VoiceID     string        `json:"voice_id"`
	Style       string        `json:"style"`
	Text        string        `json:"text"`
	Model       string        `json:"model"`
	Format      string        `json:"format"`
	SampleRate  int           `json:"sampleRate"`
	ChannelType string        `json:"channelType"`
	Speed       int           `json:"speed"`
	Pitch       int           `json:"pitch"`
	Variation   int           `json:"variation"`
	Pauses      pauseSettings `json:"pauseSettings"`
}

type pauseSettings struct {
	SentencePause int `json:"sentencePause"`
	CommaPause    int `json:"commaPause"`
}

// TTS implements tts.Provider on the Murf streaming endpoint.
type TTS struct {
	apiKey  string
	baseURL string
	client  *http.Client
	retry   ai.RetryConfig
}

// Option configures the TTS client.
type Option func(*TTS)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(u string) Option {
	return func(t *TTS) { t.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *TTS) { t.client = c }
}

// WithRetryConfig overrides the retry policy for recoverable failures.
func WithRetryConfig(cfg ai.RetryConfig) Option {
	return func(t *TTS) { t.retry = cfg }
}

// New creates a Murf synthesis back-end.
func New(apiKey string, opts ...Option) *TTS {
	t := &TTS{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   ai.DefaultRetryConfig,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Synthesize renders one chunk of text to MP3 audio. Recoverable failures
// are retried per the retry policy; fatal errors and cancellation are not.
func (t *TTS) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	delay := t.retry.InitialDelay
	var err error
	for attempt := 0; ; attempt++ {
		var audio []byte
		audio, err = t.synthesizeOnce(ctx, req)
		if err == nil {
			return audio, nil
		}
		if attempt >= t.retry.MaxRetries || !ai.IsRecoverable(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * t.retry.BackoffFactor)
		if delay > t.retry.MaxDelay {
			delay = t.retry.MaxDelay
		}
	}
}

func (t *TTS) synthesizeOnce(ctx context.Context, req tts.Request) ([]byte, error) {
	voice, ok := voices[req.Voice]
	if !ok {
		voice = voices[DefaultVoice]
	}

	payload := synthesizeRequest{
		VoiceID:     voice.ID,
		Style:       voice.Style,
		Text:        req.Text,
		Model:       "FALCON",
		Format:      "MP3",
		SampleRate:  24000,
		ChannelType: "MONO",
		Speed:       voice.Speed,
		Pitch:       voice.Pitch,
		Variation:   voice.Variation,
		Pauses:      pauseSettings{SentencePause: 420, CommaPause: 220},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/speech/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building synthesis request: %w", err)
	}
	httpReq.Header.Set("api-key", t.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, ai.NewRecoverableError(err, "murf request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("murf returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, ai.NewFatalError(err, "murf rejected credentials")
		}
		return nil, ai.NewRecoverableError(err, "murf synthesis failed")
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ai.NewRecoverableError(err, "reading murf response")
	}
	if len(audio) == 0 {
		return nil, ai.NewRecoverableError(fmt.Errorf("empty audio payload"), "murf returned no audio")
	}
	return audio, nil
}

// Capabilities describes the Murf back-end.
func (t *TTS) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		Voices:      Voices(),
		SampleRates: []int{24000},
		Format:      "mp3",
	}
}
