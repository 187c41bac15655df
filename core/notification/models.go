package notification

import (
	"time"

	"github.com/carosello75/courseconnect/core/user"
)

type Type string

const (
	TypeEnrollmentCreated Type = "enrollment_created"
	TypeLessonCompleted   Type = "lesson_completed"
	TypeCourseCompleted   Type = "course_completed"
	TypeCoursePublished   Type = "course_published"
	TypeNewPost           Type = "new_post"
	TypeWelcome           Type = "welcome"
)

// Broadcast reports whether events of this type fan out to many users.
func (t Type) Broadcast() bool {
	return t == TypeCoursePublished || t == TypeNewPost
}

// Notification is an immutable message addressed to one user; only IsRead ever changes.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	SenderID    *string   `json:"sender_id"`
	Type        Type      `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read"`
	PostID      *string   `json:"post_id,omitempty"`
	CourseID    *string   `json:"course_id,omitempty"`
	LessonID    *string   `json:"lesson_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// Refs points a notification at the objects it is about. Empty fields are not set.
type Refs struct {
	PostID   string
	CourseID string
	LessonID string
}

// Event is a domain fact turned into notifications by the Dispatcher.
type Event struct {
	Type  Type
	Actor *user.Ref // nil for system events

	RecipientID string // welcome

	CourseID     string
	CourseTitle  string
	InstructorID string

	LessonID    string
	LessonTitle string

	PostID string
}

// Page is a slice of a recipient's notifications, newest first.
type Page struct {
	Items       []Notification `json:"items"`
	UnreadCount int            `json:"unread_count"`
}
