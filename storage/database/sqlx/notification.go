package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/carosello75/courseconnect/core/notification"
)

const notificationColumns = `id, recipient_id, sender_id, type, title, message, is_read, post_id, course_id, lesson_id, created_at`

type notificationRow struct {
	ID          string      `db:"id"`
	RecipientID string      `db:"recipient_id"`
	SenderID    null.String `db:"sender_id"`
	Type        string      `db:"type"`
	Title       string      `db:"title"`
	Message     string      `db:"message"`
	IsRead      bool        `db:"is_read"`
	PostID      null.String `db:"post_id"`
	CourseID    null.String `db:"course_id"`
	LessonID    null.String `db:"lesson_id"`
	CreatedAt   time.Time   `db:"created_at"`
}

func newNotificationRow(n notification.Notification) notificationRow {
	return notificationRow{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		SenderID:    null.StringFromPtr(n.SenderID),
		Type:        string(n.Type),
		Title:       n.Title,
		Message:     n.Message,
		IsRead:      n.IsRead,
		PostID:      null.StringFromPtr(n.PostID),
		CourseID:    null.StringFromPtr(n.CourseID),
		LessonID:    null.StringFromPtr(n.LessonID),
		CreatedAt:   n.CreatedAt.UTC(),
	}
}

func (row notificationRow) notification() notification.Notification {
	return notification.Notification{
		ID:          row.ID,
		RecipientID: row.RecipientID,
		SenderID:    row.SenderID.Ptr(),
		Type:        notification.Type(row.Type),
		Title:       row.Title,
		Message:     row.Message,
		IsRead:      row.IsRead,
		PostID:      row.PostID.Ptr(),
		CourseID:    row.CourseID.Ptr(),
		LessonID:    row.LessonID.Ptr(),
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	repository
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{repository{db: db}}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.ID = uuid.New().String()
	n.IsRead = false
	row := newNotificationRow(n)
	_, err := sqlx.NamedExecContext(ctx, repo.exec(ctx), `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (:id, :recipient_id, :sender_id, :type, :title, :message, :is_read, :post_id, :course_id, :lesson_id, :created_at)`,
		row,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return row.notification(), nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, recipientID string, limit int) ([]notification.Notification, error) {
	var rows []notificationRow
	err := repo.exec(ctx).SelectContext(ctx, &rows, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		recipientID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	items := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.notification())
	}
	return items, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := repo.exec(ctx).GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read`, recipientID)
	return count, errors.Wrap(err, "counting unread notifications")
}

func (repo notificationRepository) MarkRead(ctx context.Context, recipientID string, ids []string) (int, error) {
	q := `UPDATE notifications SET is_read = true WHERE recipient_id = $1 AND NOT is_read`
	args := []interface{}{recipientID}
	if ids != nil {
		q += ` AND id = ANY($2)`
		args = append(args, pq.Array(ids))
	}
	res, err := repo.exec(ctx).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting read notifications")
}

func (repo notificationRepository) DeleteByUsers(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	exec := repo.exec(ctx)
	if _, err := exec.ExecContext(ctx,
		`DELETE FROM notifications WHERE recipient_id = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting notifications")
	}
	_, err := exec.ExecContext(ctx,
		`UPDATE notifications SET sender_id = NULL WHERE sender_id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "unlinking notification senders")
}
