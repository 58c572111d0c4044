// Package widget sequences lookups for the single weather view: startup
// fetch, submitted cities, and re-fetches from history chips. It owns the
// displayed state and hands snapshots to a Renderer.
package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/validation"
)

// DefaultCity is fetched at startup when no city was ever recorded.
const DefaultCity = "Jakarta"

// Notices shown to the user.
const (
	NoticeNotFound    = "City not found!"
	NoticeUnavailable = "Weather service unavailable, please try again."
)

// ErrSuperseded is returned when a newer request was issued before this one
// completed; its result was dropped.
var ErrSuperseded = errors.New("superseded by a newer request")

// ErrNoSuchEntry is returned by Select for an index outside the history.
var ErrNoSuchEntry = errors.New("no such history entry")

// HistoryStore is the persistence the controller needs; *history.Store implements it.
type HistoryStore interface {
	Load(ctx context.Context) (models.HistoryList, error)
	Record(ctx context.Context, city string, now time.Time) (models.HistoryList, error)
	MostRecentCity(ctx context.Context) (string, bool, error)
}

// State is what the view shows. Current stays at its previous value when a
// lookup fails.
type State struct {
	Current *models.CurrentConditions
	History models.HistoryList
	Notice  string
}

// Renderer draws a state snapshot.
type Renderer interface {
	Render(State)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(State)

// Render implements Renderer.
func (f RendererFunc) Render(s State) { f(s) }

// Config holds controller settings.
type Config struct {
	DefaultCity   string
	MinCityLength int
	MaxCityLength int
}

// Controller owns the widget state.
type Controller struct {
	client   client.WeatherClient
	history  HistoryStore
	renderer Renderer
	logger   *zap.Logger
	cfg      Config

	recordMu sync.Mutex // orders Record calls with applying their lists

	mu       sync.Mutex
	now      func() time.Time
	state    State
	seq      uint64 // id of the latest issued lookup
	recorded bool   // state.History came from a Record, so a late Load must not replace it
}

// Task is a command whose place in issue order is already fixed.
type Task func(ctx context.Context) error

// New creates a Controller. A nil renderer or logger is replaced with a no-op.
func New(wc client.WeatherClient, hs HistoryStore, r Renderer, logger *zap.Logger, cfg Config) *Controller {
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = DefaultCity
	}
	if r == nil {
		r = RendererFunc(func(State) {})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		client:   wc,
		history:  hs,
		renderer: r,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock replaces the time source used for history expiry.
func (c *Controller) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Start loads history and fetches the most recent city, or the default city
// when none was ever recorded. A successful fetch is recorded.
func (c *Controller) Start(ctx context.Context) error {
	return c.PrepareStart()(ctx)
}

// Submit validates input and looks it up; on success the city is recorded.
func (c *Controller) Submit(ctx context.Context, input string) error {
	return c.PrepareSubmit(input)(ctx)
}

// Select re-fetches the city of history chip n (1-based) without re-recording it.
func (c *Controller) Select(ctx context.Context, n int) error {
	return c.PrepareSelect(n)(ctx)
}

// PrepareStart, PrepareSubmit and PrepareSelect fix a command's place in issue
// order on the calling goroutine and return the work to run, possibly on
// another goroutine. Only the latest issued lookup may change what is shown.
func (c *Controller) PrepareStart() Task {
	seq := c.issue()
	return func(ctx context.Context) error { return c.start(ctx, seq) }
}

// PrepareSubmit validates input immediately. Invalid input takes no place in
// issue order, so it never cancels a lookup already in flight.
func (c *Controller) PrepareSubmit(input string) Task {
	city, err := validation.ValidateCity(input, c.cfg.MinCityLength, c.cfg.MaxCityLength)
	if err != nil {
		return func(context.Context) error {
			observability.WeatherLookupsTotal.WithLabelValues("submit", "invalid").Inc()
			c.notify(invalidNotice(err))
			return err
		}
	}
	seq := c.issue()
	return func(ctx context.Context) error { return c.lookup(ctx, seq, "submit", city, true) }
}

// PrepareSelect resolves chip n against the history shown right now.
func (c *Controller) PrepareSelect(n int) Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 || n > len(c.state.History) {
		return func(context.Context) error {
			c.notify(fmt.Sprintf("No history entry %d.", n))
			return fmt.Errorf("%w: %d", ErrNoSuchEntry, n)
		}
	}
	city := c.state.History[n-1].City
	c.seq++
	seq := c.seq
	return func(ctx context.Context) error { return c.lookup(ctx, seq, "select", city, false) }
}

func (c *Controller) issue() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *Controller) latest(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq == c.seq
}

func (c *Controller) start(ctx context.Context, seq uint64) error {
	list, err := c.history.Load(ctx)
	if err != nil {
		c.logger.Warn("history load failed", zap.Error(err))
	}
	c.mu.Lock()
	if !c.recorded {
		c.state.History = list
	}
	snap := c.snapshot()
	c.mu.Unlock()
	c.renderer.Render(snap)

	city, ok, err := c.history.MostRecentCity(ctx)
	if err != nil {
		c.logger.Warn("read last city failed", zap.Error(err))
	}
	if !ok {
		city = c.cfg.DefaultCity
	}
	return c.lookup(ctx, seq, "startup", city, true)
}

func (c *Controller) lookup(ctx context.Context, seq uint64, origin, city string, record bool) error {
	corrID := uuid.NewString()
	logger := c.logger.With(zap.String("correlation_id", corrID), zap.String("city", city), zap.String("origin", origin))

	if !c.latest(seq) {
		observability.WeatherLookupsTotal.WithLabelValues(origin, "stale").Inc()
		logger.Debug("skipping lookup superseded before it started")
		return ErrSuperseded
	}

	ctx = client.WithCorrelationID(ctx, corrID)
	start := time.Now()
	cond, err := c.client.FetchCurrent(ctx, city)

	if errors.Is(err, context.Canceled) {
		observability.WeatherLookupsTotal.WithLabelValues(origin, "canceled").Inc()
		logger.Debug("lookup canceled", zap.Error(err))
		return err
	}

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		observability.WeatherLookupsTotal.WithLabelValues(origin, "stale").Inc()
		logger.Debug("dropping superseded lookup result", zap.Error(err))
		return ErrSuperseded
	}
	if err != nil {
		kind := client.KindOf(err)
		c.state.Notice = noticeFor(kind)
		snap := c.snapshot()
		c.mu.Unlock()
		observability.WeatherLookupsTotal.WithLabelValues(origin, kind.String()).Inc()
		logger.Warn("weather lookup failed",
			zap.Error(err),
			zap.String("category", string(client.CategorizeError(err))),
			zap.Duration("duration", time.Since(start)))
		c.renderer.Render(snap)
		return err
	}
	now := c.now
	c.mu.Unlock()

	if record {
		c.record(ctx, logger, city, now())
	}

	c.mu.Lock()
	applied := seq == c.seq
	if applied {
		c.state.Current = &cond
		c.state.Notice = ""
	}
	snap := c.snapshot()
	c.mu.Unlock()
	c.renderer.Render(snap)

	if !applied {
		observability.WeatherLookupsTotal.WithLabelValues(origin, "stale").Inc()
		logger.Debug("lookup superseded while recording", zap.Duration("duration", time.Since(start)))
		return ErrSuperseded
	}
	observability.WeatherLookupsTotal.WithLabelValues(origin, "success").Inc()
	logger.Info("weather lookup succeeded", zap.Duration("duration", time.Since(start)))
	return nil
}

// record persists city without holding c.mu, then installs the returned list.
func (c *Controller) record(ctx context.Context, logger *zap.Logger, city string, at time.Time) {
	c.recordMu.Lock()
	defer c.recordMu.Unlock()
	list, err := c.history.Record(ctx, city, at)
	if err != nil {
		logger.Warn("history record failed", zap.Error(err))
	}
	if list == nil {
		return
	}
	c.mu.Lock()
	c.state.History = list
	c.recorded = true
	c.mu.Unlock()
}

func (c *Controller) notify(msg string) {
	c.mu.Lock()
	c.state.Notice = msg
	snap := c.snapshot()
	c.mu.Unlock()
	c.renderer.Render(snap)
}

// snapshot copies state; c.mu must be held.
func (c *Controller) snapshot() State {
	s := State{Notice: c.state.Notice}
	if c.state.Current != nil {
		cur := *c.state.Current
		s.Current = &cur
	}
	if c.state.History != nil {
		s.History = append(models.HistoryList(nil), c.state.History...)
	}
	return s
}

func noticeFor(kind client.Kind) string {
	if kind == client.KindNotFound {
		return NoticeNotFound
	}
	return NoticeUnavailable
}

func invalidNotice(err error) string {
	switch {
	case errors.Is(err, validation.ErrCityEmpty):
		return "Please enter a city name."
	case errors.Is(err, validation.ErrCityTooShort):
		return "City name is too short."
	case errors.Is(err, validation.ErrCityTooLong):
		return "City name is too long."
	case errors.Is(err, validation.ErrCityNoLetter):
		return "City name must contain a letter."
	default:
		return "City name contains invalid characters."
	}
}
