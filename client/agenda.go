package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	agendaDispatcher = "/?module=Agenda&file=dispatcher"
	lessonWindow     = 20 * 24 * time.Hour
)

// LessonsEndpoint lists the lessons from at up to twenty days later, cached
// for the ISO week of at.
func LessonsEndpoint(at time.Time) Endpoint[AgendaLesson] {
	start := strconv.FormatInt(at.Unix(), 10)
	end := strconv.FormatInt(at.Add(lessonWindow).Unix(), 10)

	return Endpoint[AgendaLesson]{
		Path:      agendaDispatcher,
		Subsystem: "agenda",
		Action:    "get lessons",
		Params: []Param{
			{"startDateTimestamp", start},
			{"endDateTimestamp", end},
			{"filterType", "false"},
			{"filterID", "false"},
			{"gridType", "1"},
			{"classID", "0"},
			{"endDateTimestampOld", end},
			{"forcedTeacher", "0"},
			{"forcedClass", "0"},
			{"forcedClassroom", "0"},
			{"assignmentTypeID", "1"},
		},
		XPath: ".//lesson",
		New:   newAgendaLesson,
		Cache: WeeklyCache{At: at},
	}
}

// Lessons returns the lessons starting at at, or now when at is zero.
func (s *Session) Lessons(ctx context.Context, at time.Time) ([]AgendaLesson, error) {
	if at.IsZero() {
		at = s.now()
	}
	return Fetch(ctx, s, LessonsEndpoint(at))
}

func HoursEndpoint(at time.Time) Endpoint[AgendaHour] {
	return Endpoint[AgendaHour]{
		Path:      agendaDispatcher,
		Subsystem: "grid",
		Action:    "get hours",
		Params:    []Param{{"date", strconv.FormatInt(at.Unix(), 10)}},
		XPath:     ".//hour",
		New:       newAgendaHour,
		Cache:     WeeklyCache{At: at},
	}
}

func (s *Session) Hours(ctx context.Context, at time.Time) ([]AgendaHour, error) {
	if at.IsZero() {
		at = s.now()
	}
	return Fetch(ctx, s, HoursEndpoint(at))
}

// FindHour looks up one hour of the week of at by its id.
func (s *Session) FindHour(ctx context.Context, at time.Time, hourID string) (AgendaHour, error) {
	hours, err := s.Hours(ctx, at)
	if err != nil {
		return AgendaHour{}, err
	}
	for _, h := range hours {
		if h.HourID == hourID {
			return h, nil
		}
	}
	return AgendaHour{}, fmt.Errorf("%w: no hour with id %q", ErrNoSuchElement, hourID)
}

// MomentInfosEndpoint describes one agenda moment, cached per moment and week.
func MomentInfosEndpoint(momentID string, at time.Time) (Endpoint[AgendaMomentInfo], error) {
	momentID = strings.TrimSpace(momentID)
	if momentID == "" {
		return Endpoint[AgendaMomentInfo]{}, errors.New("please provide a valid moment id")
	}

	return Endpoint[AgendaMomentInfo]{
		Path:      agendaDispatcher,
		Subsystem: "agenda",
		Action:    "get moment info",
		Params: []Param{
			{"momentID", momentID},
			{"dateID", ""},
			{"assignmentIDs", ""},
			{"activityID", "0"},
		},
		XPath:       ".//class",
		New:         newAgendaMomentInfo,
		PostProcess: unwrapAssignments,
		Cache:       Keyed(momentID, WeekKey(at)),
	}, nil
}

func (s *Session) MomentInfos(ctx context.Context, momentID string, at time.Time) ([]AgendaMomentInfo, error) {
	if at.IsZero() {
		at = s.now()
	}
	ep, err := MomentInfosEndpoint(momentID, at)
	if err != nil {
		return nil, err
	}
	return Fetch(ctx, s, ep)
}

func unwrapAssignments(el Element) error {
	el.unwrapList("assignments", "assignment")
	return nil
}

func newAgendaLesson(el Element) (AgendaLesson, error) {
	if err := el.Require("momentID", "hourID"); err != nil {
		return AgendaLesson{}, err
	}
	return AgendaLesson{
		MomentID:            el.Text("momentID"),
		LessonID:            el.Text("lessonID"),
		HourID:              el.Text("hourID"),
		Date:                el.Text("date"),
		Subject:             el.Text("subject"),
		Course:              el.Text("course"),
		CourseTitle:         el.Text("courseTitle"),
		Classroom:           el.Text("classroom"),
		ClassroomTitle:      el.Text("classroomTitle"),
		Teacher:             el.Text("teacher"),
		TeacherTitle:        el.Text("teacherTitle"),
		Klassen:             el.Text("klassen"),
		KlassenTitle:        el.Text("klassenTitle"),
		ClassIDs:            el.Text("classIDs"),
		BothStartStatus:     el.Text("bothStartStatus"),
		AssignmentEndStatus: el.Text("assignmentEndStatus"),
		TestDeadlineStatus:  el.Text("testDeadlineStatus"),
		NoteStatus:          el.Text("noteStatus"),
		Note:                el.Text("note"),
		Hour:                el.Text("hour"),
		Activity:            el.Text("activity"),
		ActivityID:          el.Text("activityID"),
		Color:               el.Text("color"),
		HourValue:           el.Text("hourValue"),
	}, nil
}

func newAgendaHour(el Element) (AgendaHour, error) {
	if err := el.Require("hourID"); err != nil {
		return AgendaHour{}, err
	}
	return AgendaHour{
		HourID: el.Text("hourID"),
		Start:  el.Text("start"),
		End:    el.Text("end"),
		Title:  el.Text("title"),
	}, nil
}

func newAgendaMomentInfo(el Element) (AgendaMomentInfo, error) {
	if err := el.Require("momentID"); err != nil {
		return AgendaMomentInfo{}, err
	}
	info := AgendaMomentInfo{
		ClassName: el.Text("className"),
		Subject:   el.Text("subject"),
		Materials: el.Text("materials"),
		MomentID:  el.Text("momentID"),
	}
	for _, item := range el.List("assignments") {
		a, ok := item.(Element)
		if !ok {
			continue
		}
		info.Assignments = append(info.Assignments, AgendaMomentInfoAssignment{
			StartAssignment:    a.Text("startAssignment"),
			Start:              a.Text("start"),
			End:                a.Text("end"),
			Type:               a.Text("type"),
			Description:        a.Text("description"),
			ATDescription:      a.Text("atdescription"),
			FreeDeadline:       a.Text("freedeadline"),
			Warning:            a.Text("warning"),
			AssignmentInfo:     a.Text("assignmentInfo"),
			AssignmentDeadline: a.Text("assignmentDeadline"),
		})
	}
	return info, nil
}
