package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/core/metrics"
	"github.com/carosello75/courseconnect/core/user"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var errUnknownEvent = errors.New("unknown event type")

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		// QueryNotifications returns up to limit notifications of recipientID, newest first.
		QueryNotifications(ctx context.Context, recipientID string, limit int) ([]Notification, error)
		CountUnread(ctx context.Context, recipientID string) (int, error)
		// MarkRead flags the unread notifications of recipientID matching ids (all of them when ids is nil)
		// and returns how many changed.
		MarkRead(ctx context.Context, recipientID string, ids []string) (int, error)
		// DeleteByUsers removes notifications addressed to the users and unlinks them as senders.
		DeleteByUsers(ctx context.Context, ids ...string) error
	}

	// RecipientSource lists the audience of broadcast events.
	RecipientSource interface {
		ListActiveUserIDs(ctx context.Context, excludedID string, limit int) ([]string, error)
	}

	// Emitter is how the core services publish events.
	// Emit never fails the caller: notifications are a side effect.
	Emitter interface {
		Emit(ctx context.Context, ev Event)
	}

	Dispatcher struct {
		txr          core.Transactor
		repo         Repository
		recipients   RecipientSource
		logger       core.Logger
		appName      string
		broadcastCap int
	}
)

var (
	_ Emitter       = (*Dispatcher)(nil)
	_ user.Notifier = (*Dispatcher)(nil)
)

func NewDispatcher(
	conf *core.Config,
	txr core.Transactor,
	repo Repository,
	recipients RecipientSource,
	logger core.Logger,
) *Dispatcher {
	return &Dispatcher{
		txr:          txr,
		repo:         repo,
		recipients:   recipients,
		logger:       logger,
		appName:      conf.AppName,
		broadcastCap: conf.Notification.BroadcastCap,
	}
}

// Emit writes the notifications of ev in a nested unit of work.
// Failures roll back that unit only; they are logged and counted.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	err := d.txr.WithinTx(ctx, func(ctx context.Context) error {
		return d.dispatch(ctx, ev)
	})
	if err != nil {
		metrics.NotificationFailuresTotal.WithLabelValues(string(ev.Type)).Inc()
		args := []interface{}{errors.Wrapf(err, "emitting %s", ev.Type)}
		if ev.Actor != nil {
			args = append(args, *ev.Actor)
		}
		d.logger.Error(fmt.Sprintf("notification.Emit(%s): %v", ev.Type, err), args...)
	}
}

// UserRegistered greets a new account.
func (d *Dispatcher) UserRegistered(ctx context.Context, usr user.User) {
	d.Emit(ctx, Event{Type: TypeWelcome, RecipientID: usr.ID})
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) error {
	var actorID *string
	actorName := "Someone"
	if ev.Actor != nil {
		actorID = &ev.Actor.ID
		if ev.Actor.DisplayName != "" {
			actorName = ev.Actor.DisplayName
		}
	}

	if ev.Type.Broadcast() {
		title, message, refs := broadcastText(ev, actorName)
		return d.broadcast(ctx, ev, actorID, title, message, refs)
	}

	switch ev.Type {
	case TypeEnrollmentCreated:
		_, err := d.Notify(ctx, ev.InstructorID, ev.Type,
			"New enrollment",
			fmt.Sprintf("%s enrolled in your course %q", actorName, ev.CourseTitle),
			actorID, Refs{CourseID: ev.CourseID})
		return err

	case TypeLessonCompleted:
		_, err := d.Notify(ctx, ev.InstructorID, ev.Type,
			"Lesson completed",
			fmt.Sprintf("%s completed the lesson %q of %q", actorName, ev.LessonTitle, ev.CourseTitle),
			actorID, Refs{CourseID: ev.CourseID, LessonID: ev.LessonID})
		return err

	case TypeCourseCompleted:
		if actorID != nil {
			if _, err := d.Notify(ctx, *actorID, ev.Type,
				"Course completed",
				fmt.Sprintf("Congratulations! You completed %q", ev.CourseTitle),
				nil, Refs{CourseID: ev.CourseID}); err != nil {
				return err
			}
		}
		if actorID != nil && *actorID == ev.InstructorID {
			return nil
		}
		// system notification: no sender
		_, err := d.Notify(ctx, ev.InstructorID, ev.Type,
			"Course completed",
			fmt.Sprintf("%s completed your course %q", actorName, ev.CourseTitle),
			nil, Refs{CourseID: ev.CourseID})
		return err

	case TypeWelcome:
		_, err := d.Notify(ctx, ev.RecipientID, ev.Type,
			fmt.Sprintf("Welcome to %s!", d.appName),
			"Your account is ready. Browse the course catalog to enroll in your first course.",
			nil, Refs{})
		return err
	}
	return errors.Wrap(errUnknownEvent, string(ev.Type))
}

func broadcastText(ev Event, actorName string) (title, message string, refs Refs) {
	if ev.Type == TypeNewPost {
		return "New post", fmt.Sprintf("%s shared a new post", actorName), Refs{PostID: ev.PostID}
	}
	return "New course",
		fmt.Sprintf("%s published a new course: %q", actorName, ev.CourseTitle),
		Refs{CourseID: ev.CourseID}
}

// broadcast notifies up to broadcastCap active users, newest accounts first, never the actor.
func (d *Dispatcher) broadcast(ctx context.Context, ev Event, actorID *string, title, message string, refs Refs) error {
	if d.broadcastCap <= 0 {
		return nil
	}
	var excluded string
	if actorID != nil {
		excluded = *actorID
	}
	ids, err := d.recipients.ListActiveUserIDs(ctx, excluded, d.broadcastCap)
	if err != nil {
		return errors.Wrap(err, "listing broadcast recipients")
	}
	for _, id := range ids {
		if _, err := d.Notify(ctx, id, ev.Type, title, message, actorID, refs); err != nil {
			return err
		}
	}
	return nil
}

// Notify stores a notification for recipientID.
// It returns false without writing anything when the sender is the recipient.
func (d *Dispatcher) Notify(
	ctx context.Context,
	recipientID string,
	typ Type,
	title, message string,
	senderID *string,
	refs Refs,
) (bool, error) {
	if recipientID == "" {
		return false, nil
	}
	if senderID != nil && *senderID == recipientID {
		return false, nil
	}

	n := Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        typ,
		Title:       title,
		Message:     message,
		PostID:      core.StringPtr(refs.PostID),
		CourseID:    core.StringPtr(refs.CourseID),
		LessonID:    core.StringPtr(refs.LessonID),
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := d.repo.CreateNotification(ctx, n); err != nil {
		return false, errors.Wrap(err, "creating notification")
	}
	metrics.NotificationsCreatedTotal.WithLabelValues(string(typ)).Inc()
	return true, nil
}

// List returns the newest notifications of recipient along with their unread count.
func (d *Dispatcher) List(ctx context.Context, recipient user.Ref, limit int) (Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	} else if limit > maxPageSize {
		limit = maxPageSize
	}

	items, err := d.repo.QueryNotifications(ctx, recipient.ID, limit)
	if err != nil {
		return Page{}, metrics.Boundary("notification.list", errors.Wrap(err, "querying notifications"))
	}
	unread, err := d.repo.CountUnread(ctx, recipient.ID)
	if err != nil {
		return Page{}, metrics.Boundary("notification.list", errors.Wrap(err, "counting unread notifications"))
	}
	if items == nil {
		items = []Notification{}
	}
	return Page{Items: items, UnreadCount: unread}, nil
}

// MarkRead marks the given notifications of recipient as read, or all of them when ids is nil.
// Ids of notifications owned by other users are ignored.
func (d *Dispatcher) MarkRead(ctx context.Context, recipient user.Ref, ids []string) (int, error) {
	if ids != nil && len(ids) == 0 {
		return 0, nil
	}
	n, err := d.repo.MarkRead(ctx, recipient.ID, ids)
	if err != nil {
		return 0, metrics.Boundary("notification.mark_read", errors.Wrap(err, "marking notifications read"))
	}
	return n, nil
}

func (d *Dispatcher) UnreadCount(ctx context.Context, recipient user.Ref) (int, error) {
	n, err := d.repo.CountUnread(ctx, recipient.ID)
	if err != nil {
		return 0, metrics.Boundary("notification.unread_count", errors.Wrap(err, "counting unread notifications"))
	}
	return n, nil
}
