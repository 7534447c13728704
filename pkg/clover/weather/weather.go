// Package weather fetches spoken forecasts from OpenWeatherMap. It sits
// behind the catalog's weather hook the same way the responder sits behind
// the fallback rule: a small HTTP adapter the rules call through a func.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jholhewres/clover/pkg/clover/config"
)

// Client queries the OpenWeatherMap current-weather endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	city       string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a weather client from config.
func New(cfg config.WeatherConfig, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/data/2.5"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		city:    cfg.City,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger.With("component", "weather"),
	}
}

// currentResponse is the slice of the OpenWeatherMap payload we read.
type currentResponse struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Current returns a spoken one-liner for the configured city.
func (c *Client) Current(ctx context.Context) (string, error) {
	return c.CurrentIn(ctx, c.city)
}

// CurrentIn returns a spoken one-liner for city, falling back to the
// configured default when city is empty.
func (c *Client) CurrentIn(ctx context.Context, city string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("weather API key not configured")
	}
	city = strings.TrimSpace(city)
	if city == "" {
		city = c.city
	}
	if city == "" {
		return "", fmt.Errorf("no city configured")
	}

	endpoint := fmt.Sprintf("%s/weather?q=%s&appid=%s&units=metric",
		c.baseURL, url.QueryEscape(city), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var cur currentResponse
	if err := json.Unmarshal(body, &cur); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := cur.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("weather API: %s", msg)
	}

	desc := "unknown conditions"
	if len(cur.Weather) > 0 && cur.Weather[0].Description != "" {
		desc = cur.Weather[0].Description
	}
	name := cur.Name
	if name == "" {
		name = city
	}

	c.logger.Debug("weather fetched",
		"city", name,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return fmt.Sprintf("The temperature in %s is %.0f degrees with %s. The humidity is %d percent.",
		name, cur.Main.Temp, desc, cur.Main.Humidity), nil
}
