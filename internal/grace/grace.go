// Package grace holds conversations of operators who went offline for a
// grace window before returning them to the queue.
package grace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/inboxd/internal/conversation"
	"github.com/zulandar/inboxd/internal/events"
	"github.com/zulandar/inboxd/internal/metrics"
	"github.com/zulandar/inboxd/internal/models"
	"github.com/zulandar/inboxd/internal/operator"
	"gorm.io/gorm"
)

// DefaultMinutes is the grace window used when none is given.
const DefaultMinutes = 1

// Options configures a Ledger. Zero values select defaults.
type Options struct {
	Logger    *slog.Logger
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Ledger records pending reclamations and processes expired ones.
type Ledger struct {
	db        *gorm.DB
	log       *slog.Logger
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New returns a Ledger using db.
func New(db *gorm.DB, opts Options) *Ledger {
	l := &Ledger{
		db:        db,
		log:       opts.Logger,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	if l.publisher == nil {
		l.publisher = events.Nop{}
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// GoOffline marks operatorID OFFLINE and opens a grace entry, expiring
// graceMinutes from now, for every conversation ALLOCATED to them. It is
// all or nothing. Conversations that already have a pending entry for the
// operator keep it.
func (l *Ledger) GoOffline(ctx context.Context, operatorID string, graceMinutes int) ([]models.GracePeriodAssignment, error) {
	operatorID, err := models.CleanID("operator_id", operatorID)
	if err != nil {
		return nil, fmt.Errorf("grace: %w", err)
	}
	if graceMinutes <= 0 {
		graceMinutes = DefaultMinutes
	}

	now := l.now()
	expires := now.Add(time.Duration(graceMinutes) * time.Minute)
	var created []models.GracePeriodAssignment
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := operator.Get(tx, operatorID); err != nil {
			return err
		}
		if err := operator.SetStatus(tx, operatorID, models.Offline, now); err != nil {
			return err
		}

		var held []models.Conversation
		if err := tx.Where("assigned_operator_id = ? AND state = ?", operatorID, models.StateAllocated).
			Where("id NOT IN (?)", tx.Model(&models.GracePeriodAssignment{}).
				Select("conversation_id").
				Where("operator_id = ?", operatorID)).
			Find(&held).Error; err != nil {
			return fmt.Errorf("find allocated conversations: %w", err)
		}

		for _, c := range held {
			created = append(created, models.GracePeriodAssignment{
				ID:             uuid.NewString(),
				ConversationID: c.ID,
				OperatorID:     operatorID,
				ExpiresAt:      expires,
				Reason:         models.GraceOffline,
			})
		}
		if len(created) == 0 {
			return nil
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, fmt.Errorf("grace: offline %s: %w", operatorID, err)
	}

	l.metrics.GraceEntries(len(created))
	l.log.Info("operator offline",
		slog.String("operator", operatorID),
		slog.Int("held", len(created)),
		slog.Time("expires_at", expires))
	return created, nil
}

// GoOnline marks operatorID AVAILABLE and cancels all of their pending
// grace entries. Held conversations stay ALLOCATED. It returns the number
// of entries removed.
func (l *Ledger) GoOnline(ctx context.Context, operatorID string) (int64, error) {
	operatorID, err := models.CleanID("operator_id", operatorID)
	if err != nil {
		return 0, fmt.Errorf("grace: %w", err)
	}

	var removed int64
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := operator.Get(tx, operatorID); err != nil {
			return err
		}
		if err := operator.SetStatus(tx, operatorID, models.Available, l.now()); err != nil {
			return err
		}
		result := tx.Where("operator_id = ?", operatorID).Delete(&models.GracePeriodAssignment{})
		if result.Error != nil {
			return fmt.Errorf("delete grace entries: %w", result.Error)
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("grace: online %s: %w", operatorID, err)
	}

	l.log.Info("operator online", slog.String("operator", operatorID), slog.Int64("released", removed))
	return removed, nil
}

// Pending lists operatorID's grace entries, soonest expiry first.
func (l *Ledger) Pending(ctx context.Context, operatorID string) ([]models.GracePeriodAssignment, error) {
	var out []models.GracePeriodAssignment
	if err := l.db.WithContext(ctx).
		Where("operator_id = ?", operatorID).
		Order("expires_at ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("grace: pending for %s: %w", operatorID, err)
	}
	return out, nil
}

// Result summarizes one expiry pass.
type Result struct {
	Expired   int `json:"expired"`
	Reclaimed int `json:"reclaimed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// ProcessExpiry handles every entry whose expiry has passed. A conversation
// still ALLOCATED goes back to the queue; the entry is deleted either way.
// Entries never outlive their assignment, since deallocate and resolve
// drop them. Each entry has its own transaction, and an entry
// that fails is logged, counted and left for the next pass.
func (l *Ledger) ProcessExpiry(ctx context.Context) (Result, error) {
	now := l.now()
	var expired []models.GracePeriodAssignment
	if err := l.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Find(&expired).Error; err != nil {
		return Result{}, fmt.Errorf("grace: find expired: %w", err)
	}

	res := Result{Expired: len(expired)}
	for _, entry := range expired {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		prev, conv, err := l.expire(ctx, entry, now)
		switch {
		case err != nil:
			res.Failed++
			l.metrics.SweepError()
			l.log.Warn("grace entry failed",
				slog.String("entry", entry.ID),
				slog.String("conversation", entry.ConversationID),
				slog.Any("error", err))
		case conv != nil:
			res.Reclaimed++
			l.metrics.Reclaimed()
			l.log.Info("conversation reclaimed",
				slog.String("conversation", conv.ID),
				slog.String("operator", entry.OperatorID))
			events.Emit(ctx, l.publisher, l.log, events.Reclaimed,
				events.NewAssignment(events.Reclaimed, conv, prev, "", now))
		default:
			res.Skipped++
		}
	}
	return res, nil
}

// expire processes one entry. It returns the conversation as it was before
// and after reclamation, or nils when there was nothing to reclaim.
func (l *Ledger) expire(ctx context.Context, entry models.GracePeriodAssignment, now time.Time) (prev, cur *models.Conversation, err error) {
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := conversation.Get(tx, entry.ConversationID)
		switch {
		case errors.Is(err, models.ErrNotFound):
			return tx.Delete(&models.GracePeriodAssignment{}, "id = ?", entry.ID).Error
		case err != nil:
			return err
		}

		err = conversation.Apply(tx, entry.ConversationID, conversation.Change{Op: conversation.OpReclaim}, now)
		switch {
		case err == nil:
			if cur, err = conversation.Get(tx, entry.ConversationID); err != nil {
				return err
			}
			prev = before
		case errors.Is(err, models.ErrNotEligible):
			// Already queued or resolved.
		default:
			return err
		}
		return tx.Delete(&models.GracePeriodAssignment{}, "id = ?", entry.ID).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return prev, cur, nil
}
