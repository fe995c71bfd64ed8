package web

import (
	"context"

	"github.com/go-while/go-goatweb/internal/database"
	"github.com/go-while/go-goatweb/internal/metrics"
	"github.com/go-while/go-goatweb/internal/session"
)

// StartSessionCleanup removes expired sessions every configured interval
// until ctx is cancelled. The returned channel closes on exit.
func (s *WebServer) StartSessionCleanup(ctx context.Context) <-chan struct{} {
	return session.StartCleanup(ctx, &countingCleaner{db: s.DB, metrics: s.Metrics}, s.Config.Session.CleanupInterval)
}

type countingCleaner struct {
	db      *database.Database
	metrics *metrics.Metrics
}

func (c *countingCleaner) CleanupExpiredSessions() (int64, error) {
	n, err := c.db.CleanupExpiredSessions()
	if n > 0 {
		c.metrics.SessionsCleaned.Add(float64(n))
	}
	return n, err
}
