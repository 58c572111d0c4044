package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// FlushTelemetry flushes telemetry before process exit: metrics go to the
// textfile (when textfilePath is set), then logs are synced.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, textfilePath string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p := strings.TrimSpace(textfilePath); p != "" {
		if err := WriteTextfile(p); err != nil {
			return fmt.Errorf("flush metrics: %w", err)
		}
	}
	if logger != nil {
		if err := logger.Sync(); err != nil && !isIgnorableSyncError(err) {
			return fmt.Errorf("flush logs: %w", err)
		}
	}
	return nil
}

// isIgnorableSyncError matches the EINVAL/ENOTTY zap reports when syncing a terminal.
func isIgnorableSyncError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "invalid argument") || strings.Contains(s, "inappropriate ioctl")
}
