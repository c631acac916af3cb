package notification

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/realtime"
)

// ImportNotifier pushes job events to the user and tenant rooms and records the terminal
// ones as notifications. Every failure is logged and swallowed.
type ImportNotifier struct {
	publisher realtime.Publisher
	service   Service
	logger    zerolog.Logger
}

// NewImportNotifier builds the notifier. service may be nil to skip persistence.
func NewImportNotifier(publisher realtime.Publisher, service Service, logger zerolog.Logger) *ImportNotifier {
	return &ImportNotifier{
		publisher: publisher,
		service:   service,
		logger:    logger.With().Str("component", "import-notifier").Logger(),
	}
}

func (n *ImportNotifier) EmitProgress(ctx context.Context, userID string, evt importer.ProgressEvent) {
	n.broadcast(ctx, userID, evt.TenantID, realtime.EventImportProgress, evt)
}

func (n *ImportNotifier) EmitComplete(ctx context.Context, userID string, evt importer.CompletionEvent) {
	n.broadcast(ctx, userID, evt.TenantID, realtime.EventImportComplete, evt)
	if n.service == nil {
		return
	}
	if err := n.service.NotifyImportCompleted(ctx, userID, evt); err != nil {
		n.logger.Warn().Err(err).Str("job_id", evt.ImportJobID).Msg("Completion notification not stored")
	}
}

func (n *ImportNotifier) EmitFailed(ctx context.Context, userID string, evt importer.FailureEvent) {
	n.broadcast(ctx, userID, evt.TenantID, realtime.EventImportFailed, evt)
	if n.service == nil {
		return
	}
	if err := n.service.NotifyImportFailed(ctx, userID, evt); err != nil {
		n.logger.Warn().Err(err).Str("job_id", evt.ImportJobID).Msg("Failure notification not stored")
	}
}

func (n *ImportNotifier) broadcast(ctx context.Context, userID, tenantID, event string, payload interface{}) {
	var rooms []string
	if userID != "" {
		rooms = append(rooms, realtime.UserRoom(userID))
	}
	if tenantID != "" {
		rooms = append(rooms, realtime.TenantRoom(tenantID))
	}
	if len(rooms) == 0 {
		return
	}
	msg, err := realtime.NewMessage(event, payload, rooms...)
	if err != nil {
		n.logger.Error().Err(err).Str("event", event).Msg("Event not encoded")
		return
	}
	if err := n.publisher.Publish(ctx, msg); err != nil {
		n.logger.Warn().Err(err).Strs("rooms", rooms).Str("event", event).Msg("Event not published")
	}
}
