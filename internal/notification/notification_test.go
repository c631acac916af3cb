package notification

import (
	"context"
	"encoding/json"
	"net/smtp"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartkubik/import-api/internal/config"
	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/models"
	"github.com/smartkubik/import-api/internal/realtime"
	"github.com/smartkubik/import-api/internal/repository"
)

type memoryRepo struct {
	created []*models.Notification
	err     error
}

func (r *memoryRepo) Create(_ context.Context, n *models.Notification) error {
	if r.err != nil {
		return r.err
	}
	n.CreatedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	r.created = append(r.created, n)
	return nil
}

func (r *memoryRepo) List(context.Context, string, string, models.NotificationFilter) ([]models.Notification, error) {
	out := make([]models.Notification, 0, len(r.created))
	for _, n := range r.created {
		out = append(out, *n)
	}
	return out, nil
}

func (r *memoryRepo) MarkRead(_ context.Context, _, _, id string) (*models.Notification, error) {
	for _, n := range r.created {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, repository.ErrNotificationNotFound
}

func (r *memoryRepo) MarkAllRead(context.Context, string, string) (int, error) {
	return len(r.created), nil
}

type recordingPublisher struct {
	msgs []realtime.Message
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg realtime.Message) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

type countingNotifier struct {
	got []models.Notification
	err error
}

func (n *countingNotifier) Notify(_ context.Context, notif models.Notification) error {
	n.got = append(n.got, notif)
	return n.err
}

func TestProgressGoesToUserAndTenantRooms(t *testing.T) {
	pub := &recordingPublisher{}
	repo := &memoryRepo{}
	n := NewImportNotifier(pub, NewService(repo, zerolog.Nop()), zerolog.Nop())

	n.EmitProgress(context.Background(), "user-1", importer.ProgressEvent{
		ImportJobID: "job-1", TenantID: "tenant-1", ProcessedRows: 10, TotalRows: 25, PercentComplete: 40,
	})

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, []string{"user:user-1", "tenant:tenant-1"}, pub.msgs[0].Rooms)
	assert.Equal(t, realtime.EventImportProgress, pub.msgs[0].Event)

	var evt importer.ProgressEvent
	require.NoError(t, json.Unmarshal(pub.msgs[0].Data, &evt))
	assert.Equal(t, 10, evt.ProcessedRows)
	assert.Equal(t, 40.0, evt.PercentComplete)
	assert.Empty(t, repo.created)
}

func TestCompletionIsStored(t *testing.T) {
	pub := &recordingPublisher{}
	repo := &memoryRepo{}
	n := NewImportNotifier(pub, NewService(repo, zerolog.Nop()), zerolog.Nop())

	n.EmitComplete(context.Background(), "user-1", importer.CompletionEvent{
		ImportJobID:   "job-1", TenantID: "tenant-1", EntityType: "products", FileName: "products.csv",
		ProcessedRows: 2, SuccessfulRows: 1, SkippedRows: 1, FailedRows: 1, TotalErrors: 2,
	})

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, realtime.EventImportComplete, pub.msgs[0].Event)

	require.Len(t, repo.created, 1)
	got := repo.created[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "tenant-1", got.TenantID)
	assert.Equal(t, models.NotificationEventImportCompleted, got.EventType)
	assert.Equal(t, models.NotificationSeverityWarning, got.Severity)
	assert.Equal(t, "Import completed: products.csv", got.Title)
	assert.Equal(t, "1 created, 0 updated, 1 skipped, 1 failed.", got.Message)
	require.NotNil(t, got.UserID)
	assert.Equal(t, "user-1", *got.UserID)
	require.NotNil(t, got.ImportJobID)
	assert.Equal(t, "job-1", *got.ImportJobID)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(got.Metadata, &meta))
	assert.Equal(t, "products", meta["entity_type"])
	assert.EqualValues(t, 2, meta["total_errors"])
}

func TestFailureSurvivesBrokenChannels(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	repo := &memoryRepo{err: errors.New("db down")}
	n := NewImportNotifier(pub, NewService(repo, zerolog.Nop()), zerolog.Nop())

	assert.NotPanics(t, func() {
		n.EmitFailed(context.Background(), "", importer.FailureEvent{ImportJobID: "job-1", TenantID: "tenant-1", Error: "boom"})
	})
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, []string{"tenant:tenant-1"}, pub.msgs[0].Rooms)
}

func TestFailureFansOutAndToleratesNotifierErrors(t *testing.T) {
	first := &countingNotifier{err: errors.New("smtp refused")}
	second := &countingNotifier{}
	repo := &memoryRepo{}
	svc := NewService(repo, zerolog.Nop(), first, nil, second)

	err := svc.NotifyImportFailed(context.Background(), "", importer.FailureEvent{
		ImportJobID: "job-9", TenantID: "tenant-1", EntityType: "customers", ProcessedRows: 40,
	})
	require.NoError(t, err)
	require.Len(t, first.got, 1)
	require.Len(t, second.got, 1)

	got := second.got[0]
	assert.Equal(t, "Import failed: customers import", got.Title)
	assert.Equal(t, "Import stopped after 40 rows: unknown error", got.Message)
	assert.Equal(t, models.NotificationSeverityError, got.Severity)
	assert.Nil(t, got.UserID)

	err = svc.NotifyImportFailed(context.Background(), "user-1", importer.FailureEvent{ImportJobID: "job-9"})
	assert.Error(t, err)
	assert.Len(t, repo.created, 1)
}

func TestServiceReadsThroughRepository(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, zerolog.Nop())
	require.NoError(t, svc.NotifyImportCompleted(context.Background(), "user-1", importer.CompletionEvent{
		ImportJobID: "job-1", TenantID: "tenant-1", EntityType: "products",
	}))

	items, err := svc.List(context.Background(), "tenant-1", "user-1", models.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.NotificationSeverityInfo, items[0].Severity)

	_, err = svc.MarkRead(context.Background(), "tenant-1", "user-1", items[0].ID)
	assert.NoError(t, err)
	_, err = svc.MarkRead(context.Background(), "tenant-1", "user-1", "missing")
	assert.True(t, errors.Is(err, repository.ErrNotificationNotFound))

	n, err := svc.MarkAllRead(context.Background(), "tenant-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEmailNotifierFormatsMessage(t *testing.T) {
	n, err := NewEmailNotifier(config.EmailConfig{
		From:            "imports@example.com", SMTPHost: "smtp.example.com",
		AlertRecipients: []string{" ops@example.com ", "", "OPS@example.com", "lead@example.com"},
	}, zerolog.Nop())
	require.NoError(t, err)

	var addr string
	var to []string
	var body string
	n.send = func(a string, _ smtp.Auth, _ string, rcpt []string, msg []byte) error {
		addr, to, body = a, rcpt, string(msg)
		return nil
	}

	jobID := "job-7"
	require.NoError(t, n.Notify(context.Background(), models.Notification{
		ID:    "n-1", TenantID: "tenant-1", ImportJobID: &jobID, Severity: models.NotificationSeverityError,
		Title: "Import failed: products.csv", Message: "worker heartbeat lost",
	}))
	assert.Equal(t, "smtp.example.com:587", addr)
	assert.Equal(t, []string{"ops@example.com", "lead@example.com"}, to)
	assert.Contains(t, body, "Subject: [SmartKubik] Import failed: products.csv\r\n")
	assert.Contains(t, body, "worker heartbeat lost")
	assert.Contains(t, body, "Import job: job-7")
	assert.NotContains(t, body, "At:")

	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 try later") }
	assert.Error(t, n.Notify(context.Background(), models.Notification{ID: "n-2"}))

	_, err = NewEmailNotifier(config.EmailConfig{From: "x@example.com"}, zerolog.Nop())
	assert.Error(t, err)
}
