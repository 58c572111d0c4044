package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// WeatherClient resolves a city name to current conditions.
type WeatherClient interface {
	FetchCurrent(ctx context.Context, city string) (models.CurrentConditions, error)
}

var (
	// ErrNotFound means the provider could not resolve the city.
	ErrNotFound = errors.New("city not found")
	// ErrNetwork covers transport, credential and upstream failures.
	ErrNetwork = errors.New("weather provider unavailable")
	// ErrInvalidAPIKey is reported together with ErrNetwork.
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrRateLimited is reported together with ErrNetwork.
	ErrRateLimited = errors.New("rate limited")
	// ErrUpstreamFailure is reported together with ErrNetwork.
	ErrUpstreamFailure = errors.New("upstream failure")
)

const (
	DefaultAPIURL = "https://api.openweathermap.org/data/2.5/weather"
	DefaultUnits  = "metric"
)

type OpenWeatherClient struct {
	apiKey  string
	apiURL  string
	units   string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// Option configures an OpenWeatherClient.
type Option func(*OpenWeatherClient)

// WithUnits sets the provider unit system ("metric", "imperial", "standard").
func WithUnits(units string) Option {
	return func(c *OpenWeatherClient) {
		if u := strings.TrimSpace(units); u != "" {
			c.units = u
		}
	}
}

// WithRateLimiter makes each call wait for a token first. nil disables limiting.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *OpenWeatherClient) { c.limiter = l }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenWeatherClient) {
		if hc != nil {
			c.client = hc
		}
	}
}

func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration, opts ...Option) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	c := &OpenWeatherClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		units:   DefaultUnits,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type openWeatherResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Timezone int    `json:"timezone"`
	Name     string `json:"name"`
}

// FetchCurrent performs one lookup. No retries: the user re-submits.
func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, city string) (models.CurrentConditions, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return models.CurrentConditions{}, fmt.Errorf("%w: empty city", ErrNotFound)
	}
	if err := c.wait(ctx); err != nil {
		return models.CurrentConditions{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return c.callAPI(ctx, city)
}

func (c *OpenWeatherClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if c.limiter.Tokens() < 1 {
		observability.RateLimitWaitsTotal.Inc()
	}
	return c.limiter.Wait(ctx)
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, city string) (models.CurrentConditions, error) {
	start := time.Now()

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.buildRequest(reqCtx, city)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.CurrentConditions{}, fmt.Errorf("%w: build request: %w", ErrNetwork, err)
	}

	if corrID := CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		switch {
		case errors.Is(err, context.Canceled):
			return models.CurrentConditions{}, fmt.Errorf("%w: request canceled: %w", ErrNetwork, err)
		case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
			return models.CurrentConditions{}, fmt.Errorf("%w: request timeout: %w: %v", ErrNetwork, context.DeadlineExceeded, err)
		}
		return models.CurrentConditions{}, fmt.Errorf("%w: http request failed: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return models.CurrentConditions{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.CurrentConditions{}, fmt.Errorf("%w: read response body: %w", ErrNetwork, err)
	}

	var apiResp openWeatherResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.CurrentConditions{}, fmt.Errorf("%w: parse response: %w", ErrNetwork, err)
	}
	if apiResp.Name == "" && len(apiResp.Weather) == 0 {
		return models.CurrentConditions{}, fmt.Errorf("%w: empty response for %q", ErrNotFound, city)
	}

	return c.mapResponse(apiResp, city), nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, city string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := baseURL.Query()
	params.Set("q", city)
	params.Set("units", c.units)
	params.Set("appid", c.apiKey)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *OpenWeatherClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrNetwork, ErrInvalidAPIKey)
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrNetwork, ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %w: HTTP %d", ErrNetwork, ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

func (c *OpenWeatherClient) mapResponse(apiResp openWeatherResponse, city string) models.CurrentConditions {
	var category, description string
	if len(apiResp.Weather) > 0 {
		category = apiResp.Weather[0].Main
		description = apiResp.Weather[0].Description
	}

	displayName := apiResp.Name
	if displayName == "" {
		displayName = city
	}

	zone := time.FixedZone("", apiResp.Timezone)
	out := models.CurrentConditions{
		City:        displayName,
		Country:     apiResp.Sys.Country,
		Temperature: apiResp.Main.Temp,
		Category:    category,
		Description: description,
		Humidity:    apiResp.Main.Humidity,
		WindSpeed:   apiResp.Wind.Speed,
		Units:       c.units,
		FetchedAt:   c.now(),
	}
	if apiResp.Sys.Sunrise > 0 {
		out.Sunrise = time.Unix(apiResp.Sys.Sunrise, 0).In(zone)
	}
	if apiResp.Sys.Sunset > 0 {
		out.Sunset = time.Unix(apiResp.Sys.Sunset, 0).In(zone)
	}
	return out
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
