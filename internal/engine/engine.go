// Package engine orchestrates the evaluation cycle: refresh entity
// snapshot, price all entities in parallel, run one contagion propagation as
// a barrier phase, fuse, and enqueue mitigations. A cycle either completes
// fully or fails atomically; the previous cycle's scores remain the
// published state on failure.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/actionqueue"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/config"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/contagion"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/feeds"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/fusion"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/pricing"
	"github.com/cwklurks/tokyo-market-risk-dashboard/internal/pubsub"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/metrics"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

const scoresChannel = "risk.scores"

// Broadcaster receives each completed cycle for live subscribers.
type Broadcaster interface {
	Broadcast(v interface{})
}

// Service runs evaluation cycles on a fixed interval and serves the latest
// result.
type Service struct {
	logger  *zap.Logger
	cfg     config.EngineConfig
	market  feeds.MarketProvider
	seismic feeds.SeismicProvider
	graph   *contagion.Graph
	fuser   *fusion.Engine
	queue   *actionqueue.Queue
	backend pubsub.Backend
	hub     Broadcaster

	mu           sync.RWMutex
	last         *models.CycleResult
	lastSnapshot *models.MarketSnapshot

	runMu     sync.Mutex
	stopChan  chan struct{}
	isRunning bool
}

// NewService wires the engine. backend and hub may be nil.
func NewService(
	logger *zap.Logger,
	cfg config.EngineConfig,
	market feeds.MarketProvider,
	seismic feeds.SeismicProvider,
	graph *contagion.Graph,
	fuser *fusion.Engine,
	queue *actionqueue.Queue,
	backend pubsub.Backend,
	hub Broadcaster,
) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		backend = pubsub.NewMemory()
	}
	return &Service{
		logger:   logger,
		cfg:      cfg,
		market:   market,
		seismic:  seismic,
		graph:    graph,
		fuser:    fuser,
		queue:    queue,
		backend:  backend,
		hub:      hub,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins the periodic evaluation loop
func (s *Service) Start() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.isRunning {
		return fmt.Errorf("risk engine is already running")
	}
	s.stopChan = make(chan struct{})
	s.isRunning = true
	go s.run()

	s.logger.Info("risk engine started", zap.Duration("interval", s.cfg.Interval))
	return nil
}

// Stop halts the evaluation loop
func (s *Service) Stop() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("risk engine is not running")
	}
	close(s.stopChan)
	s.isRunning = false

	s.logger.Info("risk engine stopped")
	return nil
}

func (s *Service) run() {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
			if _, err := s.EvaluateCycle(ctx); err != nil {
				s.logger.Error("evaluation cycle failed, previous scores retained", zap.Error(err))
			}
			cancel()
		}
	}
}

type pricedEntity struct {
	entity models.Entity
	result pricing.Result
}

// EvaluateCycle runs one complete pass and atomically publishes its result.
// A failing entity is skipped with a recorded reason; only a missing entity
// snapshot fails the whole cycle.
func (s *Service) EvaluateCycle(ctx context.Context) (*models.CycleResult, error) {
	started := time.Now()

	snapshot, err := s.market.Snapshot(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	degraded := snapshot.Stale
	events, seismicStale, err := s.seismic.Events(ctx)
	if err != nil {
		// No shocks is a valid state; run the cycle without them but flag it.
		s.logger.Warn("seismic events unavailable, cycle runs unshocked", zap.Error(err))
		events = nil
		degraded = true
	}
	if seismicStale {
		s.logger.Warn("seismic events served from last-known-good fallback")
		degraded = true
	}

	priced, skipped := s.priceAll(snapshot.Entities, events, started)

	// Propagation barrier: needs every priced entity before anyone fuses.
	initial := make(map[string]float64, len(priced))
	for _, pe := range priced {
		initial[pe.entity.ID] = s.initialRisk(pe.result)
	}
	propagated, report, err := s.graph.Propagate(initial, contagion.Options{
		Decay:         s.cfg.Decay,
		MaxIterations: s.cfg.MaxIterations,
		Epsilon:       s.cfg.ConvergenceEpsilon,
	})
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.PropagationIterations.Observe(float64(report.Iterations))
	if !report.Converged {
		s.logger.Warn("contagion propagation hit iteration cap, result is approximate",
			zap.Int("iterations", report.Iterations),
			zap.Float64("max_delta", report.MaxDelta))
	}

	scores := make([]models.RiskScore, 0, len(priced))
	for _, pe := range priced {
		score := s.fuser.Score(
			pe.entity.ID,
			pe.result.Shock,
			propagated[pe.entity.ID],
			!report.Converged,
			started,
		)
		scores = append(scores, score)
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Fused != scores[j].Fused {
			return scores[i].Fused > scores[j].Fused
		}
		return scores[i].EntityID < scores[j].EntityID
	})

	for _, score := range scores {
		s.queue.Submit(score)
	}

	result := &models.CycleResult{
		CycleID:     uuid.New(),
		Scores:      scores,
		Skipped:     skipped,
		Portfolio:   s.portfolio(priced),
		Degraded:    degraded,
		Approximate: !report.Converged,
		ComputedAt:  started,
	}

	s.mu.Lock()
	s.last = result
	s.lastSnapshot = snapshot
	s.mu.Unlock()

	if err := s.backend.Publish(ctx, scoresChannel, result); err != nil {
		s.logger.Warn("failed to publish cycle result", zap.Error(err))
	}
	if s.hub != nil {
		s.hub.Broadcast(result)
	}

	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.CycleDuration.Observe(time.Since(started).Seconds())
	return result, nil
}

// priceAll prices every entity on a bounded worker pool. Pricing is a pure
// function per entity, so workers share nothing but the inputs.
func (s *Service) priceAll(entities []models.Entity, events []models.SeismicEvent, now time.Time) ([]pricedEntity, []models.SkippedEntity) {
	params := pricing.Params{
		RiskFreeRate:      s.cfg.RiskFreeRate,
		TimeToExpiry:      s.cfg.TimeToExpiryYears,
		ShockRadiusKM:     s.cfg.ShockRadiusKM,
		ShockDecayWindow:  s.cfg.ShockDecayWindow,
		VolatilityCeiling: s.cfg.VolatilityCeiling,
		Now:               now,
	}

	type slot struct {
		priced *pricedEntity
		skip   *models.SkippedEntity
	}
	slots := make([]slot, len(entities))

	workers := s.cfg.Workers
	if workers > len(entities) {
		workers = len(entities)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				entity := entities[i]
				result, err := pricing.Price(entity, params, events)
				if err != nil {
					slots[i].skip = &models.SkippedEntity{EntityID: entity.ID, Reason: err.Error()}
					continue
				}
				slots[i].priced = &pricedEntity{entity: entity, result: result}
			}
		}()
	}
	for i := range entities {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	priced := make([]pricedEntity, 0, len(entities))
	var skipped []models.SkippedEntity
	for _, sl := range slots {
		switch {
		case sl.priced != nil:
			priced = append(priced, *sl.priced)
		case sl.skip != nil:
			skipped = append(skipped, *sl.skip)
			metrics.EntitiesSkipped.WithLabelValues("invalid_input").Inc()
			s.logger.Warn("entity excluded from cycle",
				zap.String("entity", sl.skip.EntityID),
				zap.String("reason", sl.skip.Reason))
		}
	}
	return priced, skipped
}

// portfolio rolls the priced universe up into book-level exposure: total
// value, value-weighted adjusted volatility, parametric VaR over the
// configured horizon and summed call Greeks.
func (s *Service) portfolio(priced []pricedEntity) *models.PortfolioMetrics {
	if len(priced) == 0 {
		return nil
	}
	p := &models.PortfolioMetrics{}
	for _, pe := range priced {
		value := pe.entity.MarketValue.InexactFloat64()
		p.TotalValue += value
		p.WeightedVol += value * pe.result.AdjustedVol
		p.Delta += pe.result.Greeks.DeltaCall
		p.Gamma += pe.result.Greeks.Gamma
		p.Vega += pe.result.Greeks.Vega
		p.Theta += pe.result.Greeks.ThetaCall
	}
	if p.TotalValue > 0 {
		p.WeightedVol /= p.TotalValue
	}
	rm := pricing.ValueAtRisk(p.TotalValue, p.WeightedVol, s.cfg.VaRHorizonDays)
	p.VaR95 = rm.VaR95
	p.VaR99 = rm.VaR99
	p.ExpectedShortfall95 = rm.ExpectedShortfall95
	return p
}

// initialRisk derives the contagion seed from the pricing output: the
// volatility add-on normalized against the configured ceiling, on the same
// 0-100 scale the contagion component is read on.
func (s *Service) initialRisk(r pricing.Result) float64 {
	if s.cfg.VolatilityCeiling <= 0 {
		return 0
	}
	n := r.Shock / s.cfg.VolatilityCeiling
	if n > 1 {
		n = 1
	}
	return n * 100
}

// LastResult returns the most recent completed cycle, or nil before the
// first one.
func (s *Service) LastResult() *models.CycleResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// LastSnapshot returns the entity snapshot used by the most recent cycle.
func (s *Service) LastSnapshot() *models.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSnapshot
}
