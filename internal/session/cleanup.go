package session

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Cleaner removes expired sessions
type Cleaner interface {
	CleanupExpiredSessions() (int64, error)
}

// StartCleanup starts a background goroutine that removes expired sessions
// every interval until ctx is cancelled. The returned channel is closed when
// the goroutine has exited.
func StartCleanup(ctx context.Context, db Cleaner, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Debug("Session cleanup stopped")
				return
			case <-ticker.C:
				if _, err := db.CleanupExpiredSessions(); err != nil {
					log.WithError(err).Error("Error cleaning up expired sessions")
				}
			}
		}
	}()

	log.WithField("interval", interval).Info("Started session cleanup background task")
	return done
}
