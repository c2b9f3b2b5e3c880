package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ResultsPerPage is the page size used when walking the evaluations.
const ResultsPerPage = 50

// Results returns every evaluation, fetching pages until a short one comes
// back.
func (s *Session) Results(ctx context.Context) ([]Result, error) {
	var all []Result
	for page := 1; ; page++ {
		data := url.Values{
			"pageNumber":  {strconv.Itoa(page)},
			"itemsOnPage": {strconv.Itoa(ResultsPerPage)},
		}
		results, err := FetchJSON[[]Result](ctx, s, http.MethodGet, "/results/api/v1/evaluations/", data, nil)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
		if len(results) < ResultsPerPage {
			return all, nil
		}
	}
}

// ResultDetails fetches one evaluation including its Details.
func (s *Session) ResultDetails(ctx context.Context, identifier string) (Result, error) {
	return FetchJSON[Result](ctx, s, http.MethodGet, "/results/api/v1/evaluations/"+url.PathEscape(identifier), nil, nil)
}

func (s *Session) Periods(ctx context.Context) ([]Period, error) {
	return FetchJSON[[]Period](ctx, s, http.MethodGet, "/results/api/v1/periods/", nil, nil)
}

func (s *Session) Courses(ctx context.Context) ([]Course, error) {
	return FetchJSON[[]Course](ctx, s, http.MethodGet, "/results/api/v1/courses/", nil, nil)
}

// TopNavCourses lists the courses of the top navigation bar, which is a
// different structure than Courses.
func (s *Session) TopNavCourses(ctx context.Context) ([]CourseCondensed, error) {
	reply, err := FetchJSON[struct {
		Own []CourseCondensed `json:"own"`
	}](ctx, s, http.MethodPost, "/Topnav/getCourseConfig", nil, nil)
	if err != nil {
		return nil, err
	}
	return reply.Own, nil
}

func (s *Session) Reports(ctx context.Context) ([]Report, error) {
	return FetchJSON[[]Report](ctx, s, http.MethodGet, "/results/api/v1/reports", nil, nil)
}

// DownloadReport resolves the report's download link and returns the file.
func (s *Session) DownloadReport(ctx context.Context, report Report, progress func(read, total int64)) ([]byte, error) {
	link, err := FetchJSON[struct {
		URL string `json:"url"`
	}](ctx, s, http.MethodGet, report.DownloadURL, nil, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.Get(ctx, link.URL, &RequestOptions{Progress: progress})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, newDownloadError(resp)
	}
	return resp.Body, nil
}

func (s *Session) StudentSupportLinks(ctx context.Context) ([]StudentSupportLink, error) {
	return FetchJSON[[]StudentSupportLink](ctx, s, http.MethodGet, "/student-support/api/v1/", nil, nil)
}

// FutureTasks lists the upcoming tasks grouped per day and course.
func (s *Session) FutureTasks(ctx context.Context) ([]FutureTaskDay, error) {
	data := url.Values{
		"lastAssignmentID": {"0"},
		"lastDate":         {""},
		"filterType":       {"false"},
		"filterID":         {"false"},
	}
	reply, err := FetchJSON[struct {
		Days []FutureTaskDay `json:"days"`
	}](ctx, s, http.MethodPost, "/Agenda/Futuretasks/getFuturetasks", data, xhrHeader())
	if err != nil {
		return nil, err
	}
	return reply.Days, nil
}
