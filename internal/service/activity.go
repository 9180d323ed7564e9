package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/sharebox/internal/ctxkeys"
	"github.com/templui/sharebox/internal/metrics"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/repository"
)

const (
	defaultActivityPageSize = 50
	maxActivityPageSize     = 500
)

// ActivityRecorder appends audit entries. Record joins the caller's transaction
// so the entry commits or rolls back together with the change it describes.
type ActivityRecorder interface {
	Record(ctx context.Context, tx *sqlx.Tx, entry *model.Activity) error
	RecordBestEffort(ctx context.Context, entry *model.Activity)
}

type ActivityService struct {
	activityRepository repository.ActivityRepository
}

func NewActivityService(activityRepository repository.ActivityRepository) *ActivityService {
	return &ActivityService{activityRepository: activityRepository}
}

// NewActivity builds an entry attributed to actor (may be nil for anonymous events).
func NewActivity(actor *model.User, category, activityType, details string) *model.Activity {
	entry := &model.Activity{
		Type:     activityType,
		Category: category,
		Details:  details,
	}
	if actor != nil {
		id := actor.ID
		entry.ChangedBy = &id
	}
	return entry
}

// About sets the user the entry concerns.
func About(entry *model.Activity, userID string) *model.Activity {
	entry.UserID = &userID
	return entry
}

func (s *ActivityService) prepare(ctx context.Context, entry *model.Activity) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	info := ctxkeys.Request(ctx)
	if entry.RequestID == "" {
		entry.RequestID = info.ID
	}
	if entry.IPAddress == "" {
		entry.IPAddress = info.IP
	}
	if entry.HTTPMethod == "" {
		entry.HTTPMethod = info.Method
	}
	if entry.Endpoint == "" {
		entry.Endpoint = info.Endpoint
	}
	if entry.UserAgent == "" {
		entry.UserAgent = info.UserAgent
	}
}

func (s *ActivityService) Record(ctx context.Context, tx *sqlx.Tx, entry *model.Activity) error {
	s.prepare(ctx, entry)

	repo := s.activityRepository
	if tx != nil {
		repo = repo.WithTx(tx)
	}

	err := repo.Create(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// RecordBestEffort is for events that change no other state, such as failed logins.
// Failures are logged and counted, never returned.
func (s *ActivityService) RecordBestEffort(ctx context.Context, entry *model.Activity) {
	err := s.Record(ctx, nil, entry)
	if err != nil {
		metrics.ActivityWriteFailures.Inc()
		slog.Error("failed to record activity",
			"error", err,
			"type", entry.Type,
			"category", entry.Category,
			"request_id", entry.RequestID,
		)
	}
}

// List returns one page of matching entries and the total number of matches.
func (s *ActivityService) List(ctx context.Context, filter model.ActivityFilter) ([]*model.Activity, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultActivityPageSize
	}
	if filter.Limit > maxActivityPageSize {
		filter.Limit = maxActivityPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, 0, invalidInput("start date is after end date")
	}

	total, err := s.activityRepository.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count activity: %w", err)
	}

	entries, err := s.activityRepository.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity: %w", err)
	}

	return entries, total, nil
}

func (s *ActivityService) Delete(ctx context.Context, actor *model.User, id string) error {
	err := s.activityRepository.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}

	slog.Info("activity deleted", "id", id, "by", actor.Username)
	return nil
}

// Purge removes every entry and returns how many were deleted.
func (s *ActivityService) Purge(ctx context.Context, actor *model.User) (int64, error) {
	n, err := s.activityRepository.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge activity: %w", err)
	}

	slog.Warn("activity log purged", "deleted", n, "by", actor.Username)
	return n, nil
}
