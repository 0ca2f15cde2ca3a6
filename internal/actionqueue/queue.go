// Package actionqueue maintains the ordered list of recommended mitigations
// derived from fused risk scores, with a debounce policy so score jitter
// within a tier does not flood the queue.
package actionqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"
	"go.uber.org/zap"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/metrics"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

// AuditSink receives every created entry for the append-only audit trail.
type AuditSink interface {
	Record(ctx context.Context, entry models.ActionQueueEntry) error
}

// Queue holds the current active entry per entity plus the full audit
// trail. Submit is mutex-serialized; the ordered view is maintained in a
// btree keyed by (score desc, timestamp desc).
type Queue struct {
	logger *zap.Logger
	sink   AuditSink

	mu     sync.Mutex
	active map[string]*models.ActionQueueEntry
	view   *btree.BTreeG[*models.ActionQueueEntry]
	audit  []models.ActionQueueEntry
}

// byPriority orders entries by fused score descending, then most recent
// first, then entity id as a stable tiebreaker.
func byPriority(a, b *models.ActionQueueEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.EntityID < b.EntityID
}

// New creates an action queue. The sink may be nil if no audit store is
// configured.
func New(logger *zap.Logger, sink AuditSink) *Queue {
	return &Queue{
		logger: logger,
		sink:   sink,
		active: make(map[string]*models.ActionQueueEntry),
		view:   btree.NewBTreeG(byPriority),
	}
}

// Submit compares the score's tier to the entity's last recorded tier and
// creates an entry only on tier change or first sighting. The returned bool
// reports whether an entry was created. The prior entry for the entity is
// superseded in the active view but remains in the audit trail.
func (q *Queue) Submit(score models.RiskScore) (*models.ActionQueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	prior := q.active[score.EntityID]
	if prior != nil && prior.Tier == score.Tier {
		return nil, false
	}

	entry := &models.ActionQueueEntry{
		ID:        uuid.New(),
		EntityID:  score.EntityID,
		Score:     score.Fused,
		Tier:      score.Tier,
		Rationale: rationale(prior, score),
		CreatedAt: score.ComputedAt,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if prior != nil {
		q.view.Delete(prior)
	}
	q.active[score.EntityID] = entry
	q.view.Set(entry)
	q.audit = append(q.audit, *entry)
	metrics.ActionEntries.WithLabelValues(entry.Tier.String()).Inc()

	if q.sink != nil {
		if err := q.sink.Record(context.Background(), *entry); err != nil {
			q.logger.Error("failed to record action entry in audit store",
				zap.String("entity", entry.EntityID), zap.Error(err))
		}
	}

	q.logger.Info("action queue entry created",
		zap.String("entity", entry.EntityID),
		zap.String("tier", entry.Tier.String()),
		zap.Float64("score", entry.Score))

	return entry, true
}

func rationale(prior *models.ActionQueueEntry, score models.RiskScore) string {
	if prior == nil {
		return fmt.Sprintf("initial assessment: fused score %.1f (pricing %.3f, contagion %.1f)",
			score.Fused, score.Pricing, score.Contagion)
	}
	return fmt.Sprintf("tier changed %s -> %s: fused score %.1f (pricing %.3f, contagion %.1f)",
		prior.Tier, score.Tier, score.Fused, score.Pricing, score.Contagion)
}

// Entries returns the current active view, ordered by score descending and
// timestamp descending.
func (q *Queue) Entries() []models.ActionQueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.ActionQueueEntry, 0, q.view.Len())
	q.view.Scan(func(e *models.ActionQueueEntry) bool {
		out = append(out, *e)
		return true
	})
	return out
}

// Audit returns the append-only trail of every entry ever created, oldest
// first.
func (q *Queue) Audit() []models.ActionQueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.ActionQueueEntry, len(q.audit))
	copy(out, q.audit)
	return out
}

// Active returns the current entry for one entity, or nil.
func (q *Queue) Active(entityID string) *models.ActionQueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.active[entityID]; ok {
		cp := *e
		return &cp
	}
	return nil
}
