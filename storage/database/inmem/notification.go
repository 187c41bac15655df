package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/carosello75/courseconnect/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	defer repo.db.lock(ctx)()

	n.ID = uuid.New().String()
	n.IsRead = false
	repo.db.t.notifications[n.ID] = n
	repo.db.track(n.ID)
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, recipientID string, limit int) ([]notification.Notification, error) {
	defer repo.db.lock(ctx)()

	items := make([]notification.Notification, 0)
	for _, n := range repo.db.t.notifications {
		if n.RecipientID == recipientID {
			items = append(items, n)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return repo.db.t.seq[items[i].ID] > repo.db.t.seq[items[j].ID]
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	defer repo.db.lock(ctx)()

	var count int
	for _, n := range repo.db.t.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, recipientID string, ids []string) (int, error) {
	defer repo.db.lock(ctx)()

	var updated int
	for id, n := range repo.db.t.notifications {
		if n.RecipientID != recipientID || n.IsRead {
			continue
		}
		if ids != nil && !contains(ids, id) {
			continue
		}
		n.IsRead = true
		repo.db.t.notifications[id] = n
		updated++
	}
	return updated, nil
}

func (repo *notificationRepository) DeleteByUsers(ctx context.Context, ids ...string) error {
	defer repo.db.lock(ctx)()

	for id, n := range repo.db.t.notifications {
		if contains(ids, n.RecipientID) {
			delete(repo.db.t.notifications, id)
			delete(repo.db.t.seq, id)
			continue
		}
		if n.SenderID != nil && contains(ids, *n.SenderID) {
			n.SenderID = nil
			repo.db.t.notifications[id] = n
		}
	}
	return nil
}
