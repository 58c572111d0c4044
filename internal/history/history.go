// Package history keeps the recently searched cities: most-recent-first,
// de-duplicated case-insensitively, capacity-bounded and expiring.
//
// The list and the most recent city live under separate keys. The list
// entries expire after the TTL; the most recent city never expires, so the
// widget can re-open on it even after its list entry has been purged.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/storage"
)

const (
	DefaultTTL      = 24 * time.Hour
	DefaultCapacity = 10

	// ListKey holds the JSON array of {city, expiry} with expiry in unix milliseconds.
	ListKey = "weatherHistory"
	// LastCityKey holds the most recently recorded city as a raw string.
	LastCityKey = "lastCity"
)

// ErrEmptyCity is returned by Record for a blank city.
var ErrEmptyCity = errors.New("city is required")

// errCorrupt marks a persisted list that could not be parsed. It never leaves the package.
var errCorrupt = errors.New("history storage corrupt")

type storedEntry struct {
	City   string `json:"city"`
	Expiry int64  `json:"expiry"`
}

// Store is the history store over a storage.KV.
type Store struct {
	kv       storage.KV
	ttl      time.Duration
	capacity int
	now      func() time.Time
	logger   *zap.Logger

	mu sync.Mutex // serializes read-modify-write within this process
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the entry lifetime. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCapacity overrides the maximum list length. Non-positive values are ignored.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock sets the time source used by Load.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for recovered corruption and purges.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store with a 24h TTL and capacity 10 unless overridden.
func New(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted list, drops expired entries, writes the result back
// and returns it. A missing or corrupt value loads as an empty list. Storage
// errors are returned; the list returned alongside is still valid to show.
func (s *Store) Load(ctx context.Context) (models.HistoryList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	list, err := s.read(ctx)
	if err != nil {
		return models.HistoryList{}, fmt.Errorf("load history: %w", err)
	}
	kept := s.visible(list, now)
	if purged := len(list) - len(kept); purged > 0 {
		observability.HistoryExpiredPurgedTotal.Add(float64(purged))
		s.logger.Debug("purged expired history entries", zap.Int("purged", purged), zap.Int("remaining", len(kept)))
	}
	if err := s.write(ctx, kept); err != nil {
		return kept, fmt.Errorf("persist loaded history: %w", err)
	}
	return kept, nil
}

// Record moves city to the front with expiry now+TTL, removing any
// case-insensitive match, truncates to capacity and persists the most recent
// city and then the list. The later write's casing wins.
func (s *Store) Record(ctx context.Context, city string, now time.Time) (models.HistoryList, error) {
	if strings.TrimSpace(city) == "" {
		return nil, ErrEmptyCity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", city, err)
	}
	current = s.visible(current, now)

	entry := models.HistoryEntry{
		City:   city,
		Expiry: time.UnixMilli(now.Add(s.ttl).UnixMilli()),
	}
	next := make(models.HistoryList, 0, len(current)+1)
	next = append(next, entry)
	for _, e := range current {
		if strings.EqualFold(e.City, city) {
			continue
		}
		next = append(next, e)
	}
	if len(next) > s.capacity {
		observability.HistoryEvictionsTotal.Add(float64(len(next) - s.capacity))
		next = next[:s.capacity]
	}

	// lastCity first: if the list write then fails, the front of the list is
	// never newer than MostRecentCity.
	if err := s.kv.Set(ctx, LastCityKey, city); err != nil {
		return next, fmt.Errorf("record %s: save last city: %w", city, err)
	}
	if err := s.write(ctx, next); err != nil {
		return next, fmt.Errorf("record %s: %w", city, err)
	}
	observability.HistoryWritesTotal.Inc()
	return next, nil
}

// MostRecentCity returns the last recorded city. It is not subject to the TTL.
func (s *Store) MostRecentCity(ctx context.Context) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, LastCityKey)
	if err != nil {
		return "", false, fmt.Errorf("read last city: %w", err)
	}
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// read returns the persisted list with corruption recovered as empty.
func (s *Store) read(ctx context.Context) (models.HistoryList, error) {
	raw, ok, err := s.kv.Get(ctx, ListKey)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return models.HistoryList{}, nil
	}
	list, err := decode(raw)
	if err != nil {
		observability.HistoryCorruptTotal.Inc()
		s.logger.Warn("discarding unreadable history", zap.Error(err), zap.Int("bytes", len(raw)))
		return models.HistoryList{}, nil
	}
	return list, nil
}

// visible keeps unexpired entries, first occurrence per city, up to capacity.
func (s *Store) visible(list models.HistoryList, now time.Time) models.HistoryList {
	out := make(models.HistoryList, 0, len(list))
	for _, e := range list {
		if e.Expired(now) || out.IndexOf(e.City) >= 0 {
			continue
		}
		out = append(out, e)
		if len(out) == s.capacity {
			break
		}
	}
	return out
}

func (s *Store) write(ctx context.Context, list models.HistoryList) error {
	raw, err := encode(list)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, ListKey, raw)
}

func decode(raw string) (models.HistoryList, error) {
	var stored []storedEntry
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	list := make(models.HistoryList, 0, len(stored))
	for _, e := range stored {
		if strings.TrimSpace(e.City) == "" {
			continue
		}
		list = append(list, models.HistoryEntry{City: e.City, Expiry: time.UnixMilli(e.Expiry)})
	}
	return list, nil
}

func encode(list models.HistoryList) (string, error) {
	stored := make([]storedEntry, len(list))
	for i, e := range list {
		stored[i] = storedEntry{City: e.City, Expiry: e.Expiry.UnixMilli()}
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("encode history: %w", err)
	}
	return string(raw), nil
}
