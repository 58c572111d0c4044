// Package testhelpers provides a fake OpenWeatherMap current-weather endpoint
// and live-API settings for integration tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// WeatherPath is the provider path served by FakeProvider.
const WeatherPath = "/data/2.5/weather"

// CityFixture is the provider payload returned for one city.
type CityFixture struct {
	Name        string
	Country     string
	Temp        float64
	Humidity    int
	WindSpeed   float64
	Main        string
	Description string
	Sunrise     int64
	Sunset      int64
	Timezone    int
}

// Request is what the fake saw for one call.
type Request struct {
	City          string
	Units         string
	CorrelationID string
}

// FakeProvider serves fixtures by case-insensitive city name.
type FakeProvider struct {
	server *httptest.Server
	apiKey string

	mu         sync.Mutex
	cities     map[string]CityFixture
	requests   []Request
	failStatus int
}

// NewFakeProvider starts a provider that accepts only apiKey. Closed on test cleanup.
func NewFakeProvider(t *testing.T, apiKey string) *FakeProvider {
	t.Helper()
	f := &FakeProvider{
		apiKey: apiKey,
		cities: make(map[string]CityFixture),
	}
	router := mux.NewRouter()
	router.HandleFunc(WeatherPath, f.handleWeather).
		Methods(http.MethodGet).
		Queries("q", "{q}", "appid", "{appid}")
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"cod": "400", "message": "Nothing to geocode"})
	})
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

// URL is the full weather endpoint URL to hand to the client.
func (f *FakeProvider) URL() string {
	return f.server.URL + WeatherPath
}

// AddCity registers a fixture under its Name.
func (f *FakeProvider) AddCity(fx CityFixture) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cities[strings.ToLower(fx.Name)] = fx
}

// FailWith makes every call return status until reset with 0.
func (f *FakeProvider) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
}

// Requests returns a copy of the calls seen so far.
func (f *FakeProvider) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *FakeProvider) handleWeather(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	city := vars["q"]

	f.mu.Lock()
	f.requests = append(f.requests, Request{
		City:          city,
		Units:         r.URL.Query().Get("units"),
		CorrelationID: r.Header.Get("X-Correlation-ID"),
	})
	failStatus := f.failStatus
	fx, ok := f.cities[strings.ToLower(strings.TrimSpace(city))]
	f.mu.Unlock()

	switch {
	case vars["appid"] != f.apiKey:
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"cod": 401, "message": "Invalid API key"})
	case failStatus != 0:
		writeJSON(w, failStatus, map[string]interface{}{"cod": failStatus, "message": http.StatusText(failStatus)})
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"cod": "404", "message": "city not found"})
	default:
		writeJSON(w, http.StatusOK, fx.payload())
	}
}

func (fx CityFixture) payload() map[string]interface{} {
	return map[string]interface{}{
		"name":     fx.Name,
		"timezone": fx.Timezone,
		"main": map[string]interface{}{
			"temp":     fx.Temp,
			"humidity": fx.Humidity,
		},
		"weather": []map[string]interface{}{
			{"main": fx.Main, "description": fx.Description},
		},
		"wind": map[string]interface{}{"speed": fx.WindSpeed},
		"sys": map[string]interface{}{
			"country": fx.Country,
			"sunrise": fx.Sunrise,
			"sunset":  fx.Sunset,
		},
		"cod": 200,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Jakarta is the default-city fixture used across tests.
var Jakarta = CityFixture{
	Name:        "Jakarta",
	Country:     "ID",
	Temp:        31.4,
	Humidity:    70,
	WindSpeed:   3.6,
	Main:        "Clouds",
	Description: "broken clouds",
	Sunrise:     1735685400,
	Sunset:      1735730000,
	Timezone:    25200,
}

// Paris is a second fixture.
var Paris = CityFixture{
	Name:        "Paris",
	Country:     "FR",
	Temp:        4.2,
	Humidity:    88,
	WindSpeed:   5.1,
	Main:        "Rain",
	Description: "light rain",
	Sunrise:     1735716900,
	Sunset:      1735746900,
	Timezone:    3600,
}

// LiveAPIConfig holds settings for tests against the real provider.
type LiveAPIConfig struct {
	APIKey string
	APIURL string
}

// GetLiveAPIConfig loads live provider settings from the environment.
// Skips the test if WEATHER_API_KEY is not set.
func GetLiveAPIConfig(t *testing.T) LiveAPIConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	return LiveAPIConfig{APIKey: apiKey, APIURL: apiURL}
}
