package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct
// ErrorCategory for logs and metrics.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"not found", ErrNotFound, ErrorCategoryLocationNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", ErrNotFound), ErrorCategoryLocationNotFound},
		{"deadline", fmt.Errorf("%w: %w", ErrNetwork, context.DeadlineExceeded), ErrorCategoryTimeout},
		{"canceled", context.Canceled, ErrorCategoryTimeout},
		{"invalid key", fmt.Errorf("%w: %w", ErrNetwork, ErrInvalidAPIKey), ErrorCategoryInvalidAPIKey},
		{"rate limited", fmt.Errorf("%w: %w", ErrNetwork, ErrRateLimited), ErrorCategoryRateLimited},
		{"upstream", fmt.Errorf("%w: %w: HTTP 502", ErrNetwork, ErrUpstreamFailure), ErrorCategoryUpstream},
		{"plain network", fmt.Errorf("%w: dial tcp: connection refused", ErrNetwork), ErrorCategoryNetwork},
		{"unknown", errors.New("boom"), ErrorCategoryNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{ErrNotFound, KindNotFound},
		{fmt.Errorf("x: %w", ErrNotFound), KindNotFound},
		{ErrNetwork, KindNetwork},
		{errors.New("anything else"), KindNetwork},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestKind_String(t *testing.T) {
	if KindNotFound.String() != "not_found" || KindNetwork.String() != "network" || KindNone.String() != "none" {
		t.Error("unexpected Kind strings")
	}
	if Kind(42).String() != "unknown" {
		t.Error("Kind(42).String() should be unknown")
	}
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(empty) = %q", got)
	}
	ctx := WithCorrelationID(context.Background(), "abc")
	if got := CorrelationID(ctx); got != "abc" {
		t.Errorf("CorrelationID() = %q, want abc", got)
	}
}
