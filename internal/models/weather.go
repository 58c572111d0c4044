package models

import "time"

// CurrentConditions is the normalized current-weather record shown by the widget.
type CurrentConditions struct {
	City        string    `json:"city"`
	Country     string    `json:"country"`
	Temperature float64   `json:"temperature"`
	Category    string    `json:"category"` // provider group, e.g. "Clouds", "Rain", "Clear"
	Description string    `json:"description"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"`
	Units       string    `json:"units"` // provider unit system the values are in; empty means metric
	Sunrise     time.Time `json:"sunrise"`
	Sunset      time.Time `json:"sunset"`
	FetchedAt   time.Time `json:"fetchedAt"`
}
