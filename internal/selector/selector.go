// Package selector routes a requested year to the backend that holds its
// data. Archive years are confirmed with a probe before use so a missing
// or empty table degrades to the live source instead of failing.
package selector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/andeanvet/salescope/internal/service"
)

// Origin names which backend a Pick resolved to.
type Origin string

const (
	// OriginLive is the transactional ERP.
	OriginLive Origin = "live"
	// OriginArchive is the historical Postgres archive.
	OriginArchive Origin = "archive"
)

const (
	defaultCutoffYear = 2025
	defaultProbeTTL   = 6 * time.Hour
)

// Config tunes the routing rules.
type Config struct {
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
	// CutoffYear is the most recent year served from the archive.
	CutoffYear int
	// ProbeTTL bounds how long a probe result is trusted.
	ProbeTTL time.Duration
}

type probeResult struct {
	checkedAt time.Time
	hasData   bool
}

// Selector picks between the live source and the archive per year.
// Probe results are cached so repeated picks in one session do not hit
// the archive every time. Safe for concurrent use.
type Selector struct {
	live    service.SalesSource
	archive service.ArchiveStore
	clock   func() time.Time
	cutoff  int
	ttl     time.Duration

	mu     sync.Mutex
	probes map[int]probeResult
}

// New builds a selector over the two backends. A nil archive routes
// everything to the live source.
func New(live service.SalesSource, archive service.ArchiveStore, cfg Config) *Selector {
	cutoff := cfg.CutoffYear
	if cutoff == 0 {
		cutoff = defaultCutoffYear
	}
	ttl := cfg.ProbeTTL
	if ttl <= 0 {
		ttl = defaultProbeTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Selector{
		live:    live,
		archive: archive,
		clock:   clock,
		cutoff:  cutoff,
		ttl:     ttl,
		probes:  make(map[int]probeResult),
	}
}

// Pick returns the source that should serve the given year. Probe
// failures fall back to the live source rather than aborting.
func (s *Selector) Pick(ctx context.Context, year int) (service.SalesSource, Origin) {
	if s.archive == nil || year > s.cutoff {
		return s.live, OriginLive
	}

	// The lock spans the probe so concurrent picks of the same year do
	// not fire duplicate queries.
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if probe, ok := s.probes[year]; ok && now.Sub(probe.checkedAt) < s.ttl {
		return s.resolve(probe.hasData, year)
	}

	hasData, err := s.archive.HasData(ctx, year)
	if err != nil {
		slog.Warn("archive probe failed, using live source", "year", year, "error", err)
		return s.live, OriginLive
	}
	s.probes[year] = probeResult{checkedAt: now, hasData: hasData}
	return s.resolve(hasData, year)
}

func (s *Selector) resolve(hasData bool, year int) (service.SalesSource, Origin) {
	if hasData {
		return s.archive, OriginArchive
	}
	slog.Debug("archive has no data for year, using live source", "year", year)
	return s.live, OriginLive
}

// Invalidate evicts the cached probe for one year.
func (s *Selector) Invalidate(year int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.probes, year)
}

// Reset evicts every cached probe.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes = make(map[int]probeResult)
}
