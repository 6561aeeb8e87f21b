package router

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vocora/vocora/internal/session"
	"github.com/vocora/vocora/internal/weather"
	"github.com/vocora/vocora/pkg/ai"
	"github.com/vocora/vocora/pkg/ai/llm"
)

// ApologyFallback is returned when every generation back-end fails for a
// reason other than cancellation. Raw provider errors never reach the user.
const ApologyFallback = "I'm having trouble processing that right now. Could you try asking again?"

// Input is one routing request.
type Input struct {
	Utterance     string
	MemoryContext string
	DocumentText  string // attached document content, or empty
	Location      string // remembered location, used by weather lookups
}

// WeatherService answers weather-intent utterances.
type WeatherService interface {
	Lookup(ctx context.Context, location string) weather.Result
	Forecast(ctx context.Context, location string) weather.Result
}

// Config configures a Router.
type Config struct {
	// Fast is the ordered back-end chain for greetings and short queries.
	Fast []llm.Provider
	// Deep is the ordered back-end chain for complex and document queries.
	Deep []llm.Provider

	Weather WeatherService
	Rules   []Rule

	CacheSize int
	CacheTTL  time.Duration

	Logger *slog.Logger
}

// Router classifies utterances and dispatches them to a generation
// strategy with ordered fallback and a bounded, time-expiring cache.
type Router struct {
	rules   []Rule
	fast    []llm.Provider
	deep    []llm.Provider
	weather WeatherService
	cache   *expirable.LRU[string, string]
	logger  *slog.Logger
}

// New creates a Router.
func New(cfg Config) *Router {
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 100
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Router{
		rules:   cfg.Rules,
		fast:    cfg.Fast,
		deep:    cfg.Deep,
		weather: cfg.Weather,
		cache:   expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:  cfg.Logger,
	}
}

var namePrefix = regexp.MustCompile(`(?i)^vocora:\s*`)

// Route produces the reply text for one utterance. Cancellation through
// ctx short-circuits without retry and propagates as the context error;
// every other total failure yields the apology fallback instead.
func (r *Router) Route(ctx context.Context, in Input) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	class := Classify(r.rules, in.Utterance)
	if class == ClassDocument && in.DocumentText == "" {
		class = ClassGeneral
	}
	r.logger.Info("utterance classified",
		slog.String("class", class.String()),
		slog.Int("chars", len(in.Utterance)))

	if class == ClassWeather && r.weather != nil {
		return r.routeWeather(ctx, in)
	}

	key := cacheKey(in.Utterance, in.DocumentText != "")
	if cached, ok := r.cache.Get(key); ok {
		r.logger.Info("response cache hit", slog.String("key", key))
		return cached, nil
	}

	backends := r.fast
	if class == ClassComplex || class == ClassDocument || class == ClassGeneral {
		backends = r.deep
	}
	if len(backends) == 0 {
		backends = r.fast
	}

	req := llm.Request{
		System:      systemPrompt(class, in.DocumentText != ""),
		Prompt:      buildPrompt(class, in),
		MaxTokens:   maxTokensFor(class),
		Temperature: 0.7,
	}

	reply, err := r.dispatch(ctx, backends, req)
	if err != nil {
		if ai.IsCancellation(err) {
			return "", err
		}
		r.logger.Error("all generation back-ends failed", slog.String("error", err.Error()))
		return ApologyFallback, nil
	}

	r.cache.Add(key, reply)
	return reply, nil
}

// dispatch tries each back-end in order. Cancellation stops the chain
// immediately; malformed or empty output counts as failure and falls
// through to the next back-end.
func (r *Router) dispatch(ctx context.Context, backends []llm.Provider, req llm.Request) (string, error) {
	var lastErr error
	for _, backend := range backends {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		resp, err := backend.Complete(ctx, req)
		if err != nil {
			if ai.IsCancellation(err) {
				return "", err
			}
			r.logger.Warn("generation back-end failed",
				slog.String("backend", backend.Name()),
				slog.String("error", err.Error()))
			lastErr = err
			continue
		}
		resp = strings.TrimSpace(namePrefix.ReplaceAllString(strings.TrimSpace(resp), ""))
		if resp == "" {
			r.logger.Warn("generation back-end returned empty output",
				slog.String("backend", backend.Name()))
			lastErr = ai.ErrRecoverable
			continue
		}
		if err := ctx.Err(); err != nil {
			// Cancelled while generating: discard, never surface.
			return "", err
		}
		r.logger.Info("reply generated",
			slog.String("backend", backend.Name()),
			slog.Int("chars", len(resp)))
		return resp, nil
	}
	if lastErr == nil {
		lastErr = ai.ErrRecoverable
	}
	return "", lastErr
}

var forecastRe = regexp.MustCompile(`(?i)\bforecast\b|\btomorrow\b|next few (?:days|hours)|this week|later today|coming days`)

// routeWeather answers through the weather collaborator. Weather replies
// are time-sensitive and bypass the response cache.
func (r *Router) routeWeather(ctx context.Context, in Input) (string, error) {
	loc := session.ExtractLocation(in.Utterance)
	if loc == "" {
		loc = in.Location
	}
	var res weather.Result
	if forecastRe.MatchString(in.Utterance) {
		res = r.weather.Forecast(ctx, loc)
	} else {
		res = r.weather.Lookup(ctx, loc)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return res.Message, nil
}

func maxTokensFor(class Class) int {
	switch class {
	case ClassGreeting, ClassSimple:
		return 300
	default:
		return 400
	}
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

// cacheKey fingerprints the normalized utterance plus document presence.
func cacheKey(utterance string, hasDocument bool) string {
	normalized := nonWord.ReplaceAllString(strings.ToLower(strings.TrimSpace(utterance)), "")
	suffix := "no-doc"
	if hasDocument {
		suffix = "doc"
	}
	sum := md5.Sum([]byte(normalized + "|" + suffix))
	return hex.EncodeToString(sum[:])[:16]
}
