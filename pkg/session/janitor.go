package session

import (
	"context"
	"log/slog"
	"time"
)

// Purger is implemented by backends that cannot expire rows on their own.
type Purger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// RunJanitor purges expired sessions every interval until ctx is done.
func RunJanitor(ctx context.Context, p Purger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.DeleteExpired(ctx)
			if err != nil {
				logger.Error("purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}
