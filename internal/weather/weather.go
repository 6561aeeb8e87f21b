// Package weather looks up current conditions through the OpenWeather API
// and renders them as natural spoken language.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

// DefaultLocation is used when the user has no remembered location and
// names none in the utterance.
var DefaultLocation = Location{Lat: 18.6298, Lon: 73.7997, Name: "Pimpri"}

// Location is a fixed fallback coordinate.
type Location struct {
	Lat, Lon float64
	Name     string
}

// Facts holds the structured conditions for one lookup.
type Facts struct {
	Location    string
	Country     string
	Temperature int // Celsius
	FeelsLike   int
	Description string
	Humidity    int
	WindSpeed   float64 // m/s
}

// Result is the outcome of a lookup. When OK is false, Message carries a
// short user-facing explanation instead of raw provider errors.
type Result struct {
	OK      bool
	Facts   *Facts
	Message string
}

// Client queries the OpenWeather current-conditions endpoint.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates an OpenWeather client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 5 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// locationQuery resolves the named location into query parameters. An
// empty, "current" or "here" location resolves to the default coordinates.
func (c *Client) locationQuery(location string) url.Values {
	q := url.Values{}
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" || loc == "current" || loc == "here" {
		q.Set("lat", fmt.Sprintf("%.4f", DefaultLocation.Lat))
		q.Set("lon", fmt.Sprintf("%.4f", DefaultLocation.Lon))
	} else {
		q.Set("q", location)
	}
	return q
}

// Lookup fetches current conditions for the named location.
func (c *Client) Lookup(ctx context.Context, location string) Result {
	q := c.locationQuery(location)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return Result{Message: "Sorry, I had trouble getting the weather information. Please try again."}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("weather lookup failed", slog.String("error", err.Error()))
		return Result{Message: "Sorry, I had trouble getting the weather information. Please try again."}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Result{Message: fmt.Sprintf("I couldn't find weather information for %q. Could you try a different city name?", location)}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("weather lookup failed", slog.Int("status", resp.StatusCode))
		return Result{Message: "Sorry, I had trouble getting the weather information. Please try again."}
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{Message: "Sorry, I had trouble getting the weather information. Please try again."}
	}

	facts := &Facts{
		Location:    body.Name,
		Country:     body.Sys.Country,
		Temperature: int(math.Round(body.Main.Temp)),
		FeelsLike:   int(math.Round(body.Main.FeelsLike)),
		Humidity:    body.Main.Humidity,
		WindSpeed:   body.Wind.Speed,
	}
	if len(body.Weather) > 0 {
		facts.Description = body.Weather[0].Description
	}

	c.logger.Info("weather lookup",
		slog.String("location", facts.Location),
		slog.Int("temperature", facts.Temperature),
		slog.String("conditions", facts.Description))

	return Result{OK: true, Facts: facts, Message: FormatMessage(facts)}
}

// ForecastEntry is one 3-hour slot of the short-range forecast.
type ForecastEntry struct {
	Time        string
	Temperature int // Celsius
	Description string
}

type forecastResponse struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

// Forecast fetches the next 24 hours of 3-hourly conditions for the named
// location and summarizes the first four slots.
func (c *Client) Forecast(ctx context.Context, location string) Result {
	q := c.locationQuery(location)
	q.Set("cnt", "8")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/forecast?"+q.Encode(), nil)
	if err != nil {
		return Result{Message: "Sorry, I had trouble getting the forecast. Please try again."}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("forecast lookup failed", slog.String("error", err.Error()))
		return Result{Message: "Sorry, I had trouble getting the forecast. Please try again."}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Result{Message: fmt.Sprintf("I couldn't find weather information for %q. Could you try a different city name?", location)}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("forecast lookup failed", slog.Int("status", resp.StatusCode))
		return Result{Message: "Sorry, I had trouble getting the forecast. Please try again."}
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || len(body.List) == 0 {
		return Result{Message: "Sorry, I had trouble getting the forecast. Please try again."}
	}

	entries := make([]ForecastEntry, 0, 4)
	for _, item := range body.List {
		if len(entries) == 4 {
			break
		}
		e := ForecastEntry{
			Time:        time.Unix(item.Dt, 0).Format("03:04 PM"),
			Temperature: int(math.Round(item.Main.Temp)),
		}
		if len(item.Weather) > 0 {
			e.Description = item.Weather[0].Description
		}
		entries = append(entries, e)
	}

	c.logger.Info("forecast lookup",
		slog.String("location", body.City.Name),
		slog.Int("slots", len(entries)))

	return Result{OK: true, Message: FormatForecast(body.City.Name, entries)}
}

// FormatForecast renders the forecast slots as one spoken sentence.
func FormatForecast(city string, entries []ForecastEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		p := fmt.Sprintf("%s, %d degrees Celsius", e.Time, e.Temperature)
		if e.Description != "" {
			p += " with " + e.Description
		}
		parts = append(parts, p)
	}
	return fmt.Sprintf("Here's the forecast for %s: %s.", city, strings.Join(parts, ". "))
}

// FormatMessage renders conditions as one spoken paragraph.
func FormatMessage(f *Facts) string {
	var feel string
	switch {
	case f.Temperature < 10:
		feel = "It's quite cold"
	case f.Temperature < 20:
		feel = "It's cool"
	case f.Temperature < 25:
		feel = "It's pleasant"
	case f.Temperature < 30:
		feel = "It's warm"
	default:
		feel = "It's hot"
	}

	var b strings.Builder
	place := f.Location
	if f.Country != "" {
		place += ", " + f.Country
	}
	fmt.Fprintf(&b, "Currently in %s, %s at %d degrees Celsius. ", place, strings.ToLower(feel[:1])+feel[1:], f.Temperature)
	if f.Description != "" {
		fmt.Fprintf(&b, "The weather is %s. ", f.Description)
	}
	if abs(f.Temperature-f.FeelsLike) >= 3 {
		fmt.Fprintf(&b, "It feels like %d degrees. ", f.FeelsLike)
	}
	if f.Humidity > 70 {
		fmt.Fprintf(&b, "Humidity is high at %d percent. ", f.Humidity)
	} else if f.Humidity > 0 && f.Humidity < 30 {
		fmt.Fprintf(&b, "Humidity is low at %d percent. ", f.Humidity)
	}
	if f.WindSpeed > 5 {
		fmt.Fprintf(&b, "Wind speed is %.1f meters per second.", f.WindSpeed)
	}
	return strings.TrimSpace(b.String())
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
