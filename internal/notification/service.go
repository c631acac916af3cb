package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/models"
	"github.com/smartkubik/import-api/internal/repository"
)

// Notifier delivers a stored notification over an outside channel such as email.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification) error
}

// Service records import outcomes as notifications and lets users read them back.
type Service interface {
	NotifyImportCompleted(ctx context.Context, userID string, evt importer.CompletionEvent) error
	NotifyImportFailed(ctx context.Context, userID string, evt importer.FailureEvent) error
	List(ctx context.Context, tenantID, userID string, f models.NotificationFilter) ([]models.Notification, error)
	MarkRead(ctx context.Context, tenantID, userID, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, tenantID, userID string) (int, error)
}

type service struct {
	repo      repository.NotificationRepository
	logger    zerolog.Logger
	notifiers []Notifier
}

func NewService(repo repository.NotificationRepository, logger zerolog.Logger, notifiers ...Notifier) Service {
	active := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			active = append(active, notifier)
		}
	}
	return &service{
		repo:      repo,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		notifiers: active,
	}
}

func (s *service) NotifyImportCompleted(ctx context.Context, userID string, evt importer.CompletionEvent) error {
	severity := models.NotificationSeverityInfo
	if evt.FailedRows > 0 {
		severity = models.NotificationSeverityWarning
	}
	return s.record(ctx, userID, evt.TenantID, evt.ImportJobID, &models.Notification{
		EventType: models.NotificationEventImportCompleted,
		Severity:  severity,
		Title:     fmt.Sprintf("Import completed: %s", fileLabel(evt.FileName, evt.EntityType)),
		Message: fmt.Sprintf("%d created, %d updated, %d skipped, %d failed.",
			evt.SuccessfulRows-evt.UpdatedRows, evt.UpdatedRows, evt.SkippedRows, evt.FailedRows),
	}, map[string]interface{}{
		"entity_type":     evt.EntityType,
		"processed_rows":  evt.ProcessedRows,
		"successful_rows": evt.SuccessfulRows,
		"updated_rows":    evt.UpdatedRows,
		"skipped_rows":    evt.SkippedRows,
		"failed_rows":     evt.FailedRows,
		"total_errors":    evt.TotalErrors,
	})
}

func (s *service) NotifyImportFailed(ctx context.Context, userID string, evt importer.FailureEvent) error {
	reason := strings.TrimSpace(evt.Error)
	if reason == "" {
		reason = "unknown error"
	}
	return s.record(ctx, userID, evt.TenantID, evt.ImportJobID, &models.Notification{
		EventType: models.NotificationEventImportFailed,
		Severity:  models.NotificationSeverityError,
		Title:     fmt.Sprintf("Import failed: %s", fileLabel(evt.FileName, evt.EntityType)),
		Message:   fmt.Sprintf("Import stopped after %d rows: %s", evt.ProcessedRows, reason),
	}, map[string]interface{}{
		"entity_type":    evt.EntityType,
		"processed_rows": evt.ProcessedRows,
		"failed_rows":    evt.FailedRows,
		"reason":         reason,
	})
}

// record stores n for the job and then hands it to every notifier. Delivery failures are
// logged and never returned.
func (s *service) record(ctx context.Context, userID, tenantID, jobID string, n *models.Notification, meta map[string]interface{}) error {
	if strings.TrimSpace(tenantID) == "" {
		return errors.New("tenant id is required for import notifications")
	}
	n.ID = uuid.NewString()
	n.TenantID = tenantID
	if uid := strings.TrimSpace(userID); uid != "" {
		n.UserID = &uid
	}
	if jobID != "" {
		n.ImportJobID = &jobID
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "marshal notification metadata")
	}
	n.Metadata = raw

	log := s.logger.With().Str("tenant_id", tenantID).Str("job_id", jobID).Str("event_type", string(n.EventType)).Logger()
	if err := s.repo.Create(ctx, n); err != nil {
		log.Error().Err(err).Msg("failed to persist notification")
		return errors.Wrap(err, "persist notification")
	}
	for _, notifier := range s.notifiers {
		if err := notifier.Notify(ctx, *n); err != nil {
			log.Warn().Err(err).Str("notification_id", n.ID).Str("channel", channelName(notifier)).Msg("failed to deliver notification")
		}
	}
	return nil
}

func (s *service) List(ctx context.Context, tenantID, userID string, f models.NotificationFilter) ([]models.Notification, error) {
	return s.repo.List(ctx, tenantID, userID, f)
}

func (s *service) MarkRead(ctx context.Context, tenantID, userID, id string) (*models.Notification, error) {
	return s.repo.MarkRead(ctx, tenantID, userID, id)
}

func (s *service) MarkAllRead(ctx context.Context, tenantID, userID string) (int, error) {
	n, err := s.repo.MarkAllRead(ctx, tenantID, userID)
	if err == nil && n > 0 {
		s.logger.Debug().Str("tenant_id", tenantID).Str("user_id", userID).Int("count", n).Msg("notifications marked read")
	}
	return n, err
}

func fileLabel(name, entityType string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return entityType + " import"
}

func channelName(n Notifier) string {
	if v, ok := n.(fmt.Stringer); ok {
		return v.String()
	}
	return fmt.Sprintf("%T", n)
}
