// Package allocation decides which operator works which conversation. All
// mutating operations run in one store transaction and change state with
// conditional updates, so concurrent callers cannot both win the same
// conversation.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zulandar/inboxd/internal/conversation"
	"github.com/zulandar/inboxd/internal/events"
	"github.com/zulandar/inboxd/internal/metrics"
	"github.com/zulandar/inboxd/internal/models"
	"github.com/zulandar/inboxd/internal/operator"
	"github.com/zulandar/inboxd/internal/priority"
	"github.com/zulandar/inboxd/internal/tenant"
	"gorm.io/gorm"
)

// Metric op label for inbox moves, which are not state transitions.
const opMoveInbox = "move_inbox"

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Logger    *slog.Logger
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	// CandidateLimit bounds the queued window used for selection and
	// normalization.
	CandidateLimit int
	Now            func() time.Time
}

// Engine runs allocation operations against one store.
type Engine struct {
	db        *gorm.DB
	log       *slog.Logger
	publisher events.Publisher
	metrics   *metrics.Metrics
	limit     int
	now       func() time.Time
}

// New returns an Engine using db.
func New(db *gorm.DB, opts Options) *Engine {
	e := &Engine{
		db:        db,
		log:       opts.Logger,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		limit:     opts.CandidateLimit,
		now:       opts.Now,
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.publisher == nil {
		e.publisher = events.Nop{}
	}
	if e.limit <= 0 {
		e.limit = conversation.ListLimit
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// DB returns the store handle the engine was built with.
func (e *Engine) DB() *gorm.DB { return e.db }

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, models.ErrForbidden):
		return metrics.OutcomeForbidden
	case errors.Is(err, models.ErrNotEligible),
		errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrInvalidID):
		return metrics.OutcomeNotEligible
	default:
		return metrics.OutcomeError
	}
}

// done records the attempt and logs failures. Expected outcomes such as
// "nothing available" are logged at debug.
func (e *Engine) done(ctx context.Context, op, id string, err error) {
	e.metrics.Transition(op, outcome(err))
	if err == nil {
		return
	}
	level := slog.LevelDebug
	if outcome(err) == metrics.OutcomeError {
		level = slog.LevelError
	}
	e.log.Log(ctx, level, "allocation op failed",
		slog.String("op", op), slog.String("id", id), slog.Any("error", err))
}

// committed logs and publishes a transition that has been committed.
func (e *Engine) committed(ctx context.Context, kind events.Kind, cur, prev *models.Conversation, actorID string) {
	attrs := []any{slog.String("conversation", cur.ID), slog.String("state", string(cur.State))}
	if cur.AssignedOperatorID != nil {
		attrs = append(attrs, slog.String("operator", *cur.AssignedOperatorID))
	}
	if actorID != "" {
		attrs = append(attrs, slog.String("actor", actorID))
	}
	e.log.Info("conversation "+string(kind), attrs...)
	events.Emit(ctx, e.publisher, e.log, kind, events.NewAssignment(kind, cur, prev, actorID, e.now()))
}

// availableOperator loads operatorID and requires it to be AVAILABLE.
func availableOperator(tx *gorm.DB, operatorID string) (*models.Operator, error) {
	op, err := operator.Get(tx, operatorID)
	if err != nil {
		return nil, err
	}
	a, err := operator.Availability(tx, operatorID)
	if err != nil {
		return nil, err
	}
	if a != models.Available {
		return nil, fmt.Errorf("operator %s is %s: %w", operatorID, a, models.ErrNotEligible)
	}
	return op, nil
}

// rank loads the tenant's candidate window and orders it best first with
// scores filled in.
func (e *Engine) rank(tx *gorm.DB, tenantID string, now time.Time) ([]models.Conversation, error) {
	w, err := tenant.GetWeights(tx, tenantID)
	if err != nil {
		return nil, err
	}
	cands, err := conversation.Queued(tx, tenantID, e.limit)
	if err != nil {
		return nil, err
	}
	e.metrics.CandidateSet(len(cands))
	priority.Rank(cands, w, now)
	return cands, nil
}

func cleanIDs(pairs ...string) ([]string, error) {
	out := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		id, err := models.CleanID(pairs[i], pairs[i+1])
		if err != nil {
			return nil, fmt.Errorf("allocation: %w", err)
		}
		out = append(out, id)
	}
	return out, nil
}
