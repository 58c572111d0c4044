package storage

import (
	"context"
	"time"

	"github.com/kjstillabower/weather-lookup/internal/observability"
)

type instrumentedKV struct {
	next    KV
	backend string
}

// Instrument wraps kv so every call is timed and errors are counted per backend.
func Instrument(kv KV, backend string) KV {
	return &instrumentedKV{next: kv, backend: backend}
}

func (i *instrumentedKV) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	v, ok, err := i.next.Get(ctx, key)
	i.observe("get", start, err)
	return v, ok, err
}

func (i *instrumentedKV) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := i.next.Set(ctx, key, value)
	i.observe("set", start, err)
	return err
}

// Ping forwards to the wrapped backend when it supports it.
func (i *instrumentedKV) Ping(ctx context.Context) error {
	if p, ok := i.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (i *instrumentedKV) Close() error {
	return i.next.Close()
}

func (i *instrumentedKV) observe(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
		observability.StorageErrorsTotal.WithLabelValues(i.backend, op).Inc()
	}
	observability.StorageOperationDuration.WithLabelValues(i.backend, op, result).Observe(time.Since(start).Seconds())
}
