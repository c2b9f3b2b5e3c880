package client

import "encoding/json"

type PersonDescription struct {
	StartingWithFirstName string `json:"startingWithFirstName"`
	StartingWithLastName  string `json:"startingWithLastName"`
}

type User struct {
	ID          string            `json:"id"`
	PictureHash string            `json:"pictureHash"`
	PictureURL  string            `json:"pictureUrl"`
	Description PersonDescription `json:"description"`
	Name        PersonDescription `json:"name"`
	Sort        string            `json:"sort"`
	Deleted     bool              `json:"deleted"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type SkoreWorkYear struct {
	ID        int       `json:"id"`
	DateRange DateRange `json:"dateRange"`
}

type Class struct {
	Identifier string `json:"identifier"`
	ID         int    `json:"id"`
	PlatformID int    `json:"platformId"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Icon       string `json:"icon"`
}

type Period struct {
	ID            int           `json:"id"`
	Name          string        `json:"name"`
	Icon          string        `json:"icon"`
	SkoreWorkYear SkoreWorkYear `json:"skoreWorkYear"`
	IsActive      bool          `json:"isActive"`
	Class         Class         `json:"class"`
}

type CourseGraphic struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type Course struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	Graphic        CourseGraphic `json:"graphic"`
	Teachers       []User        `json:"teachers"`
	SkoreClassID   int           `json:"skoreClassId"`
	ParentCourseID *int          `json:"parentCourseId"`
	SkoreWorkYear  SkoreWorkYear `json:"skoreWorkYear"`
	Class          Class         `json:"class"`
}

// CourseCondensed is a course as listed in the top navigation bar.
type CourseCondensed struct {
	ID         int    `json:"id"`
	PlatformID int    `json:"platformId"`
	Name       string `json:"name"`
	Teacher    string `json:"teacher"`
	URL        string `json:"url"`
	Descr      string `json:"descr"`
	Icon       string `json:"icon"`
}

type Component struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

type ResultGraphic struct {
	Type        string  `json:"type"`
	Color       string  `json:"color"`
	Value       float64 `json:"value"`
	Description string  `json:"description"`
}

type Feedback struct {
	Text string `json:"text"`
	User User   `json:"user"`
}

type ResultDetails struct {
	CentralTendencies []json.RawMessage `json:"centralTendencies"`
	Teachers          []User            `json:"teachers"`
	DateChanged       string            `json:"dateChanged"`
	UserChanged       User              `json:"userChanged"`
	Class             Class             `json:"class"`
}

// Result is one evaluation. Details is only filled in by ResultDetails.
type Result struct {
	Identifier       string         `json:"identifier"`
	Type             string         `json:"type"`
	Name             string         `json:"name"`
	Graphic          ResultGraphic  `json:"graphic"`
	Date             string         `json:"date"`
	GradebookOwner   User           `json:"gradebookOwner"`
	Component        *Component     `json:"component"`
	Courses          []Course       `json:"courses"`
	Period           Period         `json:"period"`
	Feedback         []Feedback     `json:"feedback"`
	AvailabilityDate string         `json:"availabilityDate"`
	IsPublished      bool           `json:"isPublished"`
	DoesCount        bool           `json:"doesCount"`
	Deleted          bool           `json:"deleted"`
	Details          *ResultDetails `json:"details"`
}

type Report struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Icon            string `json:"icon"`
	Date            string `json:"date"`
	DownloadURL     string `json:"downloadUrl"`
	Class           Class  `json:"class"`
	SchoolyearLabel string `json:"schoolyearLabel"`
}

type StudentSupportLink struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Link        string `json:"link"`
	CleanLink   string `json:"cleanLink"`
	IsVisible   bool   `json:"isVisible"`
}

type FutureTask struct {
	Label         string `json:"label"`
	Description   string `json:"description"`
	Icon          string `json:"icon"`
	Warning       bool   `json:"warning"`
	ClickHandle   string `json:"click_handle"`
	ActivityID    int    `json:"activityID"`
	DateID        string `json:"dateID"`
	AssignmentID  string `json:"assignmentID"`
	StartMomentID string `json:"startMomentID"`
	EndMomentID   string `json:"endMomentID"`
	LessonID      string `json:"lessonID"`
	Type          string `json:"type"`
	ClassID       string `json:"classID"`
	Course        string `json:"course"`
	Date          string `json:"date"`
	HourID        string `json:"hourID"`
}

type FutureTaskItems struct {
	Tasks     []FutureTask `json:"tasks"`
	Materials []string     `json:"materials"`
}

type FutureTaskCourse struct {
	LessonID    string          `json:"lessonID"`
	HourID      string          `json:"hourID"`
	ClassID     string          `json:"classID"`
	CourseTitle string          `json:"course_title"`
	Items       FutureTaskItems `json:"items"`
}

type FutureTaskDay struct {
	Date       string             `json:"date"`
	PrettyDate string             `json:"pretty_date"`
	Courses    []FutureTaskCourse `json:"courses"`
}
