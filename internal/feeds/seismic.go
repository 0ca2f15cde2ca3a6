package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/metrics"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

// SeismicProvider supplies the active seismic event list. An empty list is a
// valid result (no shocks). The bool reports whether the list came from the
// last-known-good fallback rather than a live fetch, so callers can flag the
// cycle degraded.
type SeismicProvider interface {
	Events(ctx context.Context) ([]models.SeismicEvent, bool, error)
}

// p2pquake history records: code 551 entries carry the earthquake payload.
type p2pQuakeRecord struct {
	ID         string `json:"id"`
	Code       int    `json:"code"`
	Earthquake struct {
		Time       string `json:"time"`
		Hypocenter struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Magnitude float64 `json:"magnitude"`
			Depth     float64 `json:"depth"`
		} `json:"hypocenter"`
	} `json:"earthquake"`
}

const p2pQuakeTimeLayout = "2006/01/02 15:04:05"

// P2PQuakeProvider fetches recent earthquakes from a p2pquake-style history
// endpoint, filtering out events below the magnitude floor or past the decay
// window. Falls back to the last-known-good list on failure.
type P2PQuakeProvider struct {
	client      *http.Client
	url         string
	cache       *Cache
	minMag      float64
	decayWindow time.Duration
	logger      *zap.Logger

	loc *time.Location
}

func NewP2PQuakeProvider(url string, timeout time.Duration, cache *Cache, minMag float64, decayWindow time.Duration, logger *zap.Logger) *P2PQuakeProvider {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.FixedZone("JST", 9*3600)
	}
	return &P2PQuakeProvider{
		client:      &http.Client{Timeout: timeout},
		url:         url,
		cache:       cache,
		minMag:      minMag,
		decayWindow: decayWindow,
		logger:      logger,
		loc:         loc,
	}
}

// Events fetches and filters the event stream. On upstream failure the
// cached list is returned with the fallback bit set; with no cache either, an
// empty list is returned together with the error so the caller can flag the
// cycle degraded.
func (p *P2PQuakeProvider) Events(ctx context.Context) ([]models.SeismicEvent, bool, error) {
	events, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("seismic feed fetch failed, trying last-known-good", zap.Error(err))
		metrics.FeedFallbacks.WithLabelValues("seismic").Inc()

		var cached []models.SeismicEvent
		if cerr := p.cache.load(ctx, seismicEventsKey, &cached); cerr != nil {
			return nil, false, err
		}
		return p.filterActive(cached), true, nil
	}

	if err := p.cache.store(ctx, seismicEventsKey, events); err != nil {
		p.logger.Warn("failed to cache seismic events", zap.Error(err))
	}
	return p.filterActive(events), false, nil
}

func (p *P2PQuakeProvider) fetch(ctx context.Context) ([]models.SeismicEvent, error) {
	url := p.url + "?codes=551&limit=100"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("seismic feed returned status %d", resp.StatusCode)
	}

	var records []p2pQuakeRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode seismic feed: %w", err)
	}

	events := make([]models.SeismicEvent, 0, len(records))
	for i, rec := range records {
		if rec.Code != 551 {
			continue
		}
		t, err := time.ParseInLocation(p2pQuakeTimeLayout, rec.Earthquake.Time, p.loc)
		if err != nil {
			p.logger.Debug("skipping seismic record with unparseable time",
				zap.String("time", rec.Earthquake.Time), zap.Error(err))
			continue
		}
		id := rec.ID
		if id == "" {
			id = "p2pquake-" + strconv.Itoa(i)
		}
		events = append(events, models.SeismicEvent{
			ID: id,
			Epicenter: models.Coordinates{
				Lat: rec.Earthquake.Hypocenter.Latitude,
				Lon: rec.Earthquake.Hypocenter.Longitude,
			},
			Magnitude: rec.Earthquake.Hypocenter.Magnitude,
			DepthKM:   rec.Earthquake.Hypocenter.Depth,
			Time:      t,
		})
	}
	return events, nil
}

// filterActive drops events below the magnitude floor or older than the
// decay window; expired events contribute zero shock anyway, this just keeps
// the working set small.
func (p *P2PQuakeProvider) filterActive(events []models.SeismicEvent) []models.SeismicEvent {
	now := time.Now()
	active := make([]models.SeismicEvent, 0, len(events))
	for _, ev := range events {
		if ev.Magnitude < p.minMag {
			continue
		}
		if p.decayWindow > 0 && now.Sub(ev.Time) >= p.decayWindow {
			continue
		}
		active = append(active, ev)
	}
	return active
}

// StaticSeismicProvider serves a fixed event list, used in tests.
type StaticSeismicProvider struct {
	mu     sync.RWMutex
	events []models.SeismicEvent
	stale  bool
	fail   error
}

func NewStaticSeismicProvider(events []models.SeismicEvent) *StaticSeismicProvider {
	return &StaticSeismicProvider{events: events}
}

func (p *StaticSeismicProvider) Events(ctx context.Context) ([]models.SeismicEvent, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.fail != nil {
		return nil, false, p.fail
	}
	out := make([]models.SeismicEvent, len(p.events))
	copy(out, p.events)
	return out, p.stale, nil
}

// SetEvents replaces the served event list
func (p *StaticSeismicProvider) SetEvents(events []models.SeismicEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = events
}

// SetStale marks subsequent Events responses as served from fallback.
func (p *StaticSeismicProvider) SetStale(stale bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stale = stale
}

// Fail makes every subsequent Events call return err; nil restores normal
// operation.
func (p *StaticSeismicProvider) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}
