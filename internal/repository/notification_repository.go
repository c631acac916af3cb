package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/models"
)

// ErrNotificationNotFound is returned when the notification does not exist or is not visible
// to the caller.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository stores import outcome notifications. A user sees the rows addressed
// to them plus the tenant-wide ones.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, tenantID, userID string, f models.NotificationFilter) ([]models.Notification, error)
	MarkRead(ctx context.Context, tenantID, userID, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, tenantID, userID string) (int, error)
}

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, tenant_id, user_id, import_job_id, event_type, severity, title, message, metadata, created_at, read_at`

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	const query = `
		INSERT INTO tenant.notifications (id, tenant_id, user_id, import_job_id, event_type, severity, title, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	var metadata interface{}
	if len(n.Metadata) > 0 {
		metadata = string(n.Metadata)
	}
	row := r.db.QueryRowContext(ctx, query, n.ID, n.TenantID, optional(n.UserID), optional(n.ImportJobID),
		n.EventType, n.Severity, n.Title, n.Message, metadata)
	if err := row.Scan(&n.CreatedAt); err != nil {
		return errors.Wrap(err, "insert notification")
	}
	return nil
}

// List returns the newest notifications visible to the user. Limit defaults to 25 and is
// capped at 100.
func (r *notificationRepository) List(ctx context.Context, tenantID, userID string, f models.NotificationFilter) ([]models.Notification, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 25
	}
	where := []string{"tenant_id = $1", "(user_id IS NULL OR user_id = $2)"}
	args := []interface{}{tenantID, userID}
	if f.UnreadOnly {
		where = append(where, "read_at IS NULL")
	}
	if f.ImportJobID != "" {
		args = append(args, f.ImportJobID)
		where = append(where, fmt.Sprintf("import_job_id = $%d", len(args)))
	}
	args = append(args, f.Limit)
	query := fmt.Sprintf(`SELECT %s FROM tenant.notifications WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		notificationColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, errors.Wrap(rows.Err(), "iterate notifications")
}

func (r *notificationRepository) MarkRead(ctx context.Context, tenantID, userID, id string) (*models.Notification, error) {
	query := `
		UPDATE tenant.notifications
		SET read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND tenant_id = $2 AND (user_id IS NULL OR user_id = $3)
		RETURNING ` + notificationColumns
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id, tenantID, userID))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotificationNotFound, "id=%s", id)
	}
	return n, err
}

// MarkAllRead marks every unread notification of the user as read and returns how many changed.
func (r *notificationRepository) MarkAllRead(ctx context.Context, tenantID, userID string) (int, error) {
	const query = `
		UPDATE tenant.notifications
		SET read_at = NOW()
		WHERE tenant_id = $1 AND (user_id IS NULL OR user_id = $2) AND read_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, tenantID, userID)
	if err != nil {
		return 0, errors.Wrap(err, "mark notifications read")
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanNotification(scanner rowScanner) (*models.Notification, error) {
	var (
		n           models.Notification
		userID      sql.NullString
		importJobID sql.NullString
		metadata    []byte
		readAt      sql.NullTime
	)
	err := scanner.Scan(&n.ID, &n.TenantID, &userID, &importJobID, &n.EventType, &n.Severity,
		&n.Title, &n.Message, &metadata, &n.CreatedAt, &readAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan notification")
	}
	if userID.Valid {
		n.UserID = &userID.String
	}
	if importJobID.Valid {
		n.ImportJobID = &importJobID.String
	}
	if len(metadata) > 0 {
		n.Metadata = metadata
	}
	n.ReadAt = nullTime(readAt)
	return &n, nil
}

func optional(s *string) interface{} {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return strings.TrimSpace(*s)
}
