package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// plannerWindow is how far PlannedElements looks ahead by default.
const plannerWindow = 34*24*time.Hour - time.Second

type ApplicableAssignmentType struct {
	ID           string  `json:"id"`
	PlatformID   int     `json:"platformId"`
	Name         string  `json:"name"`
	Abbreviation string  `json:"abbreviation"`
	IsVisible    bool    `json:"isVisible"`
	Weight       float64 `json:"weight"`
}

type PlannedElementPeriod struct {
	DateTimeFrom time.Time `json:"dateTimeFrom"`
	DateTimeTo   time.Time `json:"dateTimeTo"`
	WholeDay     bool      `json:"wholeDay"`
	Deadline     bool      `json:"deadline"`
}

type PlannedElementCourse struct {
	ID            string   `json:"id"`
	PlatformID    int      `json:"platformId"`
	Name          string   `json:"name"`
	ScheduleCodes []string `json:"scheduleCodes"`
	Icon          string   `json:"icon"`
	IsVisible     bool     `json:"isVisible"`
}

type PlannedElementLocation struct {
	ID           string `json:"id"`
	PlatformID   int    `json:"platformId"`
	PlatformName string `json:"platformName"`
	Number       string `json:"number"`
	Title        string `json:"title"`
	Icon         string `json:"icon"`
	Type         string `json:"type"`
	Selectable   bool   `json:"selectable"`
}

type PlannedElement struct {
	ID                 string                    `json:"id"`
	PlatformID         int                       `json:"platformId"`
	Name               string                    `json:"name"`
	Period             PlannedElementPeriod      `json:"period"`
	PlannedElementType string                    `json:"plannedElementType"`
	IsParticipant      bool                      `json:"isParticipant"`
	Courses            []PlannedElementCourse    `json:"courses"`
	Locations          []PlannedElementLocation  `json:"locations"`
	AssignmentType     *ApplicableAssignmentType `json:"assignmentType"`
	Sort               string                    `json:"sort"`
	Unconfirmed        bool                      `json:"unconfirmed"`
	Pinned             bool                      `json:"pinned"`
	Color              string                    `json:"color"`
	ResolvedStatus     string                    `json:"resolvedStatus"`
}

func (s *Session) ApplicableAssignmentTypes(ctx context.Context) ([]ApplicableAssignmentType, error) {
	return FetchJSON[[]ApplicableAssignmentType](ctx, s, http.MethodGet,
		"/lesson-content/api/v1/assignments/applicable-assigment-types", nil, nil)
}

// PlannedElements lists the planned assignments and to-dos between from and
// till. A zero from means today at midnight in Brussels; a zero till means
// 34 days after from.
func (s *Session) PlannedElements(ctx context.Context, from, till time.Time) ([]PlannedElement, error) {
	userID, ok := s.identity["id"]
	if !ok {
		return nil, fmt.Errorf("%w: the authenticated user is unknown, log in first", ErrConfiguration)
	}

	if from.IsZero() {
		from = startOfDay(s.now(), brussels())
	}
	if till.IsZero() {
		till = from.Add(plannerWindow)
	}

	data := url.Values{
		"from":  {from.Format(time.RFC3339)},
		"to":    {till.Format(time.RFC3339)},
		"types": {"planned-assignments,planned-to-dos"},
	}
	path := fmt.Sprintf("/planner/api/v1/planned-elements/user/%v", userID)
	return FetchJSON[[]PlannedElement](ctx, s, http.MethodGet, path, data, nil)
}

func brussels() *time.Location {
	loc, err := time.LoadLocation("Europe/Brussels")
	if err != nil {
		return time.Local
	}
	return loc
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
