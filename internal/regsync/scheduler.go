package regsync

import (
	"context"
	"log"
	"time"

	"formlink-backend/internal/metadata"
)

// RefreshScheduler re-syncs the registry from upstream on a fixed interval,
// keeping the offline cache warm for the next outage.
type RefreshScheduler struct {
	fetcher  *Fetcher
	registry *metadata.Registry
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
}

func NewRefreshScheduler(f *Fetcher, reg *metadata.Registry, interval time.Duration) *RefreshScheduler {
	return &RefreshScheduler{fetcher: f, registry: reg, interval: interval}
}

// Start begins the background ticker.
func (rs *RefreshScheduler) Start() {
	rs.ticker = time.NewTicker(rs.interval)
	rs.done = make(chan struct{})
	go rs.run()
	log.Printf("Registry refresh scheduler started (%s interval)", rs.interval)
}

// Stop halts the background ticker.
func (rs *RefreshScheduler) Stop() {
	if rs.ticker != nil {
		rs.ticker.Stop()
	}
	if rs.done != nil {
		close(rs.done)
	}
}

func (rs *RefreshScheduler) run() {
	for {
		select {
		case <-rs.done:
			return
		case <-rs.ticker.C:
			rs.fetcher.Sync(context.Background(), rs.registry)
		}
	}
}
