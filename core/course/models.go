package course

import (
	"time"

	"github.com/carosello75/courseconnect/core"
)

const (
	TypeStandard = "standard"
	TypeTraining = "training"

	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Type         string    `json:"type"`
	IsPrivate    bool      `json:"is_private"`
	Price        float64   `json:"price"`
	Level        string    `json:"level"`
	InstructorID string    `json:"instructor_id"`
	TotalLessons int       `json:"total_lessons"` // live count, never stored
	CreatedAt    time.Time `json:"created_at"`    // UTC
	UpdatedAt    time.Time `json:"updated_at"`    // UTC
}

type Lesson struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course_id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	VideoURL        string    `json:"video_url"`
	OrderIndex      int       `json:"order_index"`
	IsFree          bool      `json:"is_free"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string  `json:"title" validate:"required,notblank,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Category    string  `json:"category" validate:"max=100"`
	Type        string  `json:"type" validate:"omitempty,oneof=standard training"`
	IsPrivate   bool    `json:"is_private"`
	Price       float64 `json:"price" validate:"gte=0"`
	Level       string  `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
}

func (nc *NewCourse) Clean() {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Category = core.CleanString(nc.Category, true /* lower */)
	nc.Type = core.CleanString(nc.Type, true /* lower */)
	if nc.Type == "" {
		nc.Type = TypeStandard
	}
	nc.Level = core.CleanString(nc.Level, true /* lower */)
	if nc.Level == "" {
		nc.Level = LevelBeginner
	}
}

// NewLesson contains information needed to add a Lesson to a Course.
type NewLesson struct {
	Title           string `json:"title" validate:"required,notblank,max=200"`
	Content         string `json:"content"`
	VideoURL        string `json:"video_url" validate:"omitempty,url"`
	OrderIndex      int    `json:"order_index" validate:"gte=0"`
	IsFree          bool   `json:"is_free"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
}

func (nl *NewLesson) Clean() {
	nl.Title = core.CleanString(nl.Title)
	nl.VideoURL = core.CleanString(nl.VideoURL)
}

type QueryFilter struct {
	Search       string `query:"search"`
	Category     string `query:"category"`
	Type         string `query:"type"`
	Level        string `query:"level"`
	InstructorID string `query:"instructor_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Type = core.CleanString(qf.Type, true /* lower */)
	qf.Level = core.CleanString(qf.Level, true /* lower */)
	qf.InstructorID = core.CleanString(qf.InstructorID)
}

// Visibility restricts which private courses a query returns.
type Visibility struct {
	AllPrivate   bool   // admins see every course
	InstructorID string // private courses taught by this user stay visible
}
