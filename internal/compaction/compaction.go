package compaction

import (
	"log/slog"
	"sync"
	"time"

	"github.com/codedeck/server/internal/db"
)

type Config struct {
	Interval        time.Duration
	MaxCacheEntries int
	ActivityMaxAge  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:        15 * time.Minute,
		MaxCacheEntries: 5000,
		ActivityMaxAge:  30 * 24 * time.Hour,
	}
}

// Service periodically trims the execution cache to its size bound and
// expires room activity rows that have gone idle.
type Service struct {
	database *db.Database
	config   Config
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(database *db.Database, config Config) *Service {
	return &Service{
		database: database,
		config:   config,
		stop:     make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	slog.Info("compaction service started",
		"interval", s.config.Interval, "maxCacheEntries", s.config.MaxCacheEntries)
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
	slog.Info("compaction service stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.compact()
		}
	}
}

func (s *Service) compact() {
	trimmed, err := s.database.TrimCache(s.config.MaxCacheEntries)
	if err != nil {
		slog.Warn("trimming exec cache failed", "error", err)
	} else if trimmed > 0 {
		slog.Info("trimmed exec cache", "deleted", trimmed)
	}

	expired, err := s.database.DeleteStaleActivity(s.config.ActivityMaxAge)
	if err != nil {
		slog.Warn("expiring room activity failed", "error", err)
	} else if expired > 0 {
		slog.Info("expired stale room activity", "deleted", expired)
	}
}
