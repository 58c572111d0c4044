// Package display draws the widget state as a text card for a terminal.
package display

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/widget"
)

// Prompt is printed after every render.
const Prompt = "Search city > "

// Terminal renders to an io.Writer. Safe for concurrent Render calls.
type Terminal struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewTerminal creates a Terminal writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, now: time.Now}
}

// Render implements widget.Renderer.
func (t *Terminal) Render(s widget.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.w, Format(s, t.now()))
}

// Format lays out the full view: card, history chips, notice and prompt.
func Format(s widget.State, now time.Time) string {
	var b strings.Builder
	b.WriteString("\n")
	if s.Current != nil && s.Current.City != "" {
		b.WriteString(Card(*s.Current, now))
	}
	if chips := Chips(s.History); chips != "" {
		b.WriteString(chips)
		b.WriteString("\n")
	}
	if s.Notice != "" {
		b.WriteString("! ")
		b.WriteString(s.Notice)
		b.WriteString("\n")
	}
	b.WriteString(Prompt)
	return b.String()
}

// Card renders the current conditions.
func Card(c models.CurrentConditions, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", now.Format("Monday, 2 January"))
	name := c.City
	if c.Country != "" {
		name += ", " + c.Country
	}
	fmt.Fprintf(&b, "%s\n", name)
	temp, speed := UnitLabels(c.Units)
	fmt.Fprintf(&b, "  %s  %s%s\n", Glyph(c.Category), Temperature(c.Temperature), temp)
	if c.Description != "" {
		fmt.Fprintf(&b, "  %s\n", strings.ToUpper(c.Description))
	}
	fmt.Fprintf(&b, "  Humidity %d%%   Wind %s %s\n", c.Humidity, trimFloat(c.WindSpeed), speed)
	if !c.Sunrise.IsZero() && !c.Sunset.IsZero() {
		fmt.Fprintf(&b, "  Sunrise %s   Sunset %s\n", c.Sunrise.Format("15:04"), c.Sunset.Format("15:04"))
	}
	return b.String()
}

// Chips renders history entries as numbered chips selectable with "#n".
func Chips(l models.HistoryList) string {
	if len(l) == 0 {
		return ""
	}
	parts := make([]string, len(l))
	for i, e := range l {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, e.City)
	}
	return "History: " + strings.Join(parts, "  ")
}

// Glyph picks the icon for a provider weather group.
func Glyph(category string) string {
	switch category {
	case "Clouds":
		return "☁"
	case "Rain":
		return "🌧"
	case "Clear":
		return "☀"
	default:
		return "☁"
	}
}

// UnitLabels returns the temperature and wind speed suffixes for a provider
// unit system. Anything unrecognized is treated as metric.
func UnitLabels(units string) (temp, speed string) {
	switch units {
	case "imperial":
		return "°F", "mph"
	case "standard":
		return " K", "m/s"
	default:
		return "°C", "m/s"
	}
}

// Temperature rounds to whole degrees, half away from zero.
func Temperature(v float64) string {
	r := math.Round(v)
	if r == 0 {
		r = 0 // drop negative zero
	}
	return fmt.Sprintf("%.0f", r)
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
