package results

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/go-smartschool/go-smartschool/actions"
	"github.com/go-smartschool/go-smartschool/client"
)

const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

var ResultsCommand = &cli.Command{
	Name:    "results",
	Aliases: []string{"punten"},
	Usage:   "List your evaluation results",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "course",
			Usage: "Only show results for courses containing this text",
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Value:   20,
			Usage:   "Show at most this many results (0 for all)",
		},
	}, actions.SessionFlags()...),
	Action: resultsAction,
}

var CoursesCommand = &cli.Command{
	Name:   "courses",
	Usage:  "List your courses and their teachers",
	Flags:  actions.SessionFlags(),
	Action: coursesAction,
}

var ReportsCommand = &cli.Command{
	Name:  "reports",
	Usage: "List report cards, optionally downloading them",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "download-dir",
			Usage: "Download every report into this directory",
		},
	}, actions.SessionFlags()...),
	Action: reportsAction,
}

func resultsAction(ctx context.Context, cmd *cli.Command) error {
	s, err := actions.OpenSession(ctx, cmd)
	if err != nil {
		return err
	}

	results, err := s.Results(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch results: %w", err)
	}

	results = filterByCourse(results, cmd.String("course"))
	if limit := int(cmd.Int("limit")); limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	if len(results) == 0 {
		fmt.Printf("%s📭 No results found.%s\n", colorDim, colorReset)
		return nil
	}

	fmt.Printf("%s%-12s %-20s %-40s %s%s\n", colorBold, "DATE", "COURSE", "EVALUATION", "SCORE", colorReset)
	fmt.Printf("%s%s%s\n", colorDim, strings.Repeat("─", 84), colorReset)
	for _, r := range results {
		fmt.Printf("%-12s %s%-20s%s %-40s %s\n",
			shortDate(r.Date),
			colorCyan, truncate(courseName(r), 20), colorReset,
			truncate(r.Name, 40),
			scoreColor(r.Graphic)+r.Graphic.Description+colorReset,
		)
	}
	return nil
}

func filterByCourse(results []client.Result, needle string) []client.Result {
	if needle == "" {
		return results
	}
	needle = strings.ToLower(needle)

	var out []client.Result
	for _, r := range results {
		for _, c := range r.Courses {
			if strings.Contains(strings.ToLower(c.Name), needle) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func courseName(r client.Result) string {
	if len(r.Courses) == 0 {
		return ""
	}
	return r.Courses[0].Name
}

func scoreColor(g client.ResultGraphic) string {
	if g.Type != "percentage" {
		return ""
	}
	if g.Value < 0.5 {
		return colorRed
	}
	return colorGreen
}

// shortDate keeps the calendar date of an ISO timestamp.
func shortDate(date string) string {
	if len(date) >= 10 {
		return date[:10]
	}
	return date
}

func coursesAction(ctx context.Context, cmd *cli.Command) error {
	s, err := actions.OpenSession(ctx, cmd)
	if err != nil {
		return err
	}

	courses, err := s.TopNavCourses(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch courses: %w", err)
	}

	fmt.Printf("%s%-40s %s%s\n", colorBold, "COURSE", "TEACHER", colorReset)
	for _, c := range courses {
		fmt.Printf("%-40s %s%s%s\n", truncate(c.Name, 40), colorDim, c.Teacher, colorReset)
	}
	return nil
}

func reportsAction(ctx context.Context, cmd *cli.Command) error {
	s, err := actions.OpenSession(ctx, cmd)
	if err != nil {
		return err
	}

	reports, err := s.Reports(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch reports: %w", err)
	}

	dir := cmd.String("download-dir")
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	for _, r := range reports {
		fmt.Printf("%-12s %-12s %s\n", shortDate(r.Date), r.SchoolyearLabel, r.Name)
		if dir == "" {
			continue
		}

		data, err := s.DownloadReport(ctx, r, nil)
		if err != nil {
			fmt.Printf("  %s✗ %v%s\n", colorRed, err, colorReset)
			continue
		}
		name := filepath.Join(dir, fmt.Sprintf("%d-%s.pdf", r.ID, sanitize(r.Name)))
		if err := os.WriteFile(name, data, 0644); err != nil {
			return err
		}
		fmt.Printf("  %s✓ %s%s\n", colorGreen, name, colorReset)
	}
	return nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
