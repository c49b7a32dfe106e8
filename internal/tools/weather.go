package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// WeatherClient fetches current weather conditions.
type WeatherClient interface {
	CurrentWeather(ctx context.Context, latitude, longitude float64) (json.RawMessage, error)
}

// OpenMeteo is a WeatherClient backed by the Open-Meteo API, which
// needs no API key. The raw response passes through to the model
// unchanged; the model summarizes it.
type OpenMeteo struct {
	baseURL string
	client  *http.Client
}

// NewOpenMeteo creates a client against the given base URL
// (https://api.open-meteo.com in production, a test server in tests).
func NewOpenMeteo(baseURL string) *OpenMeteo {
	return &OpenMeteo{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// maxWeatherResponseBytes bounds the forecast payload fed to the model.
const maxWeatherResponseBytes = 1 << 20

func (o *OpenMeteo) CurrentWeather(ctx context.Context, latitude, longitude float64) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	q.Set("current", "temperature_2m")
	q.Set("hourly", "temperature_2m")
	q.Set("daily", "sunrise,sunset")
	q.Set("timezone", "auto")

	reqURL := o.baseURL + "/v1/forecast?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building weather request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching weather: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWeatherResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading weather response: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("weather API returned invalid JSON")
	}
	return json.RawMessage(body), nil
}
