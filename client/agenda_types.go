package client

// AgendaLesson is one lesson in the agenda grid.
type AgendaLesson struct {
	MomentID            string
	LessonID            string
	HourID              string
	Date                string
	Subject             string
	Course              string
	CourseTitle         string
	Classroom           string
	ClassroomTitle      string
	Teacher             string
	TeacherTitle        string
	Klassen             string
	KlassenTitle        string
	ClassIDs            string
	BothStartStatus     string
	AssignmentEndStatus string
	TestDeadlineStatus  string
	NoteStatus          string
	Note                string
	Hour                string
	Activity            string
	ActivityID          string
	Color               string
	HourValue           string
}

// AgendaHour is a lesson period; the portal calls them hours.
type AgendaHour struct {
	HourID string
	Start  string // HH:MM
	End    string // HH:MM
	Title  string
}

type AgendaMomentInfo struct {
	ClassName   string
	Subject     string
	Materials   string
	MomentID    string
	Assignments []AgendaMomentInfoAssignment
}

type AgendaMomentInfoAssignment struct {
	StartAssignment    string
	Start              string
	End                string
	Type               string
	Description        string
	ATDescription      string
	FreeDeadline       string
	Warning            string
	AssignmentInfo     string
	AssignmentDeadline string
}
