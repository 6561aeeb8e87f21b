package murf

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/vocora/vocora/pkg/ai"
	"github.com/vocora/vocora/pkg/ai/tts"
)

func TestSynthesize(t *testing.T) {
	is := is.New(t)

	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.Method, http.MethodPost)
		is.Equal(r.URL.Path, "/v1/speech/stream")
		is.Equal(r.Header.Get("api-key"), "test-key")
		is.NoErr(json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	client := New("test-key", WithBaseURL(srv.URL))
	audio, err := client.Synthesize(context.Background(), tts.Request{Text: "Hello world.", Voice: "en-GB-emma"})
	is.NoErr(err)
	is.Equal(string(audio), "mp3-bytes")
	is.Equal(got.VoiceID, "en-GB-emma")
	is.Equal(got.Style, "Conversational")
	is.Equal(got.Model, "FALCON")
	is.Equal(got.Format, "MP3")
	is.Equal(got.SampleRate, 24000)
	is.Equal(got.Pauses.SentencePause, 420)
}

func TestSynthesizeUnknownVoiceFallsBackToDefault(t *testing.T) {
	is := is.New(t)

	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	client := New("test-key", WithBaseURL(srv.URL))
	_, err := client.Synthesize(context.Background(), tts.Request{Text: "Hi.", Voice: "fr-FR-nobody"})
	is.NoErr(err)
	is.Equal(got.VoiceID, DefaultVoice)
}

func TestSynthesizeAuthFailureIsFatal(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New("wrong-key", WithBaseURL(srv.URL))
	_, err := client.Synthesize(context.Background(), tts.Request{Text: "Hi."})
	is.True(err != nil)
	is.True(ai.IsFatal(err))
}

func TestSynthesizeServerErrorIsRecoverable(t *testing.T) {
	is := is.New(t)

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New("test-key", WithBaseURL(srv.URL),
		WithRetryConfig(ai.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}))
	_, err := client.Synthesize(context.Background(), tts.Request{Text: "Hi."})
	is.True(err != nil)
	is.True(ai.IsRecoverable(err))
	is.Equal(requests, 2) // original attempt plus one retry
}

func TestSynthesizeRetriesRecoverableFailure(t *testing.T) {
	is := is.New(t)

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	client := New("test-key", WithBaseURL(srv.URL),
		WithRetryConfig(ai.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}))
	audio, err := client.Synthesize(context.Background(), tts.Request{Text: "Hi."})
	is.NoErr(err)
	is.Equal(string(audio), "audio")
	is.Equal(requests, 2)
}

func TestSynthesizeDoesNotRetryFatalFailure(t *testing.T) {
	is := is.New(t)

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New("wrong-key", WithBaseURL(srv.URL),
		WithRetryConfig(ai.RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}))
	_, err := client.Synthesize(context.Background(), tts.Request{Text: "Hi."})
	is.True(ai.IsFatal(err))
	is.Equal(requests, 1)
}

func TestIsVoice(t *testing.T) {
	is := is.New(t)
	is.True(IsVoice("en-US-terrell"))
	is.True(IsVoice("en-GB-william"))
	is.True(!IsVoice("xx-XX-none"))
}
