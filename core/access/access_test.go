package access

import (
	"testing"

	"github.com/carosello75/courseconnect/core/course"
	"github.com/carosello75/courseconnect/core/user"
)

func TestCanAccess(t *testing.T) {
	crs := course.Course{ID: "c1", InstructorID: "teacher"}
	paid := course.Lesson{ID: "l1", CourseID: crs.ID}
	free := course.Lesson{ID: "l2", CourseID: crs.ID, IsFree: true}

	admin := user.NewRef("admin", "Admin", []string{user.RoleAdmin})
	teacher := user.NewRef("teacher", "Teacher", []string{user.RoleInstructor})
	otherTeacher := user.NewRef("other", "Other", []string{user.RoleInstructor})
	student := user.NewRef("student", "Student", []string{user.RoleStudent})

	tests := []struct {
		name      string
		viewer    *user.Ref
		lesson    course.Lesson
		enrolled  bool
		want      bool
		wantCheck bool
	}{
		{name: "free lesson, anonymous", viewer: nil, lesson: free, want: true},
		{name: "free lesson, student", viewer: &student, lesson: free, want: true},
		{name: "paid lesson, anonymous", viewer: nil, lesson: paid, want: false},
		{name: "paid lesson, admin", viewer: &admin, lesson: paid, want: true},
		{name: "paid lesson, instructor", viewer: &teacher, lesson: paid, want: true},
		{name: "paid lesson, another instructor", viewer: &otherTeacher, lesson: paid, want: false, wantCheck: true},
		{name: "paid lesson, enrolled instructor", viewer: &otherTeacher, lesson: paid, enrolled: true, want: true, wantCheck: true},
		{name: "paid lesson, student", viewer: &student, lesson: paid, want: false, wantCheck: true},
		{name: "paid lesson, enrolled student", viewer: &student, lesson: paid, enrolled: true, want: true, wantCheck: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccess(tt.viewer, crs, tt.lesson, tt.enrolled); got != tt.want {
				t.Errorf("CanAccess() = %v, want %v", got, tt.want)
			}
			if got := NeedsEnrollmentCheck(tt.viewer, crs, tt.lesson); got != tt.wantCheck {
				t.Errorf("NeedsEnrollmentCheck() = %v, want %v", got, tt.wantCheck)
			}
		})
	}
}

func TestView(t *testing.T) {
	lsn := course.Lesson{ID: "l1", CourseID: "c1", Title: "Intro", Content: "secret", VideoURL: "https://v.test.cd/1"}

	hidden := View(lsn, false)
	if hidden.Content != nil || hidden.VideoURL != nil || hidden.Accessible {
		t.Errorf("View(false) leaks content: %+v", hidden)
	}

	shown := View(lsn, true)
	if shown.Content == nil || *shown.Content != lsn.Content || shown.VideoURL == nil || *shown.VideoURL != lsn.VideoURL {
		t.Errorf("View(true) = %+v, want content and video", shown)
	}
}
