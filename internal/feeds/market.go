package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/errors"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/metrics"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

// MarketProvider supplies the per-cycle entity snapshot.
type MarketProvider interface {
	Snapshot(ctx context.Context) (*models.MarketSnapshot, error)
}

// HTTPMarketProvider fetches the snapshot from the market-data collaborator
// and falls back to the last-known-good copy on failure.
type HTTPMarketProvider struct {
	client     *http.Client
	url        string
	cache      *Cache
	staleAfter time.Duration
	logger     *zap.Logger
}

func NewHTTPMarketProvider(url string, timeout time.Duration, cache *Cache, staleAfter time.Duration, logger *zap.Logger) *HTTPMarketProvider {
	return &HTTPMarketProvider{
		client:     &http.Client{Timeout: timeout},
		url:        url,
		cache:      cache,
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// Snapshot fetches the current entity universe. On any upstream failure the
// last-known-good snapshot is returned marked Stale; FeedUnavailable is
// returned only when no snapshot exists at all.
func (p *HTTPMarketProvider) Snapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	snapshot, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("market feed fetch failed, trying last-known-good", zap.Error(err))
		metrics.FeedFallbacks.WithLabelValues("market").Inc()

		var cached models.MarketSnapshot
		if cerr := p.cache.load(ctx, marketSnapshotKey, &cached); cerr != nil {
			return nil, errors.FeedUnavailable("market snapshot unavailable and no cached copy").Wrap(err)
		}
		cached.Stale = true
		return &cached, nil
	}

	if err := p.cache.store(ctx, marketSnapshotKey, snapshot); err != nil {
		p.logger.Warn("failed to cache market snapshot", zap.Error(err))
	}
	return snapshot, nil
}

func (p *HTTPMarketProvider) fetch(ctx context.Context) (*models.MarketSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market feed returned status %d", resp.StatusCode)
	}

	var snapshot models.MarketSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode market snapshot: %w", err)
	}
	if len(snapshot.Entities) == 0 {
		return nil, fmt.Errorf("market feed returned empty entity universe")
	}
	if snapshot.AsOf.IsZero() {
		snapshot.AsOf = time.Now()
	}
	if p.staleAfter > 0 && time.Since(snapshot.AsOf) > p.staleAfter {
		snapshot.Stale = true
	}
	return &snapshot, nil
}

// StaticMarketProvider serves a fixed snapshot, used for the topology-seeded
// universe and in tests.
type StaticMarketProvider struct {
	mu       sync.RWMutex
	snapshot models.MarketSnapshot
	fail     error
}

func NewStaticMarketProvider(entities []models.Entity) *StaticMarketProvider {
	return &StaticMarketProvider{
		snapshot: models.MarketSnapshot{Entities: entities, AsOf: time.Now()},
	}
}

func (p *StaticMarketProvider) Snapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.fail != nil {
		return nil, p.fail
	}
	cp := p.snapshot
	cp.Entities = make([]models.Entity, len(p.snapshot.Entities))
	copy(cp.Entities, p.snapshot.Entities)
	return &cp, nil
}

// SetEntities replaces the served universe
func (p *StaticMarketProvider) SetEntities(entities []models.Entity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = models.MarketSnapshot{Entities: entities, AsOf: time.Now()}
}

// Fail makes every subsequent Snapshot call return err; nil restores normal
// operation.
func (p *StaticMarketProvider) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}
