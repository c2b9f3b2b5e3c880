package agenda

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/go-smartschool/go-smartschool/actions"
	"github.com/go-smartschool/go-smartschool/client"
)

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

var AgendaCommand = &cli.Command{
	Name:  "agenda",
	Usage: "Show the lessons of a week",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "date",
			Usage: "Any day of the week to show (YYYY-MM-DD, default today)",
		},
		&cli.BoolFlag{
			Name:  "details",
			Usage: "Also show the assignments planned in each lesson",
		},
	}, actions.SessionFlags()...),
	Action: agendaAction,
}

var TasksCommand = &cli.Command{
	Name:   "tasks",
	Usage:  "Show upcoming tasks and materials",
	Flags:  actions.SessionFlags(),
	Action: tasksAction,
}

var PlannerCommand = &cli.Command{
	Name:   "planner",
	Usage:  "Show planned assignments and to-dos for the coming weeks",
	Flags:  actions.SessionFlags(),
	Action: plannerAction,
}

func agendaAction(ctx context.Context, cmd *cli.Command) error {
	var at time.Time
	if date := cmd.String("date"); date != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", date, err)
		}
		at = parsed
	}

	s, err := actions.OpenSession(ctx, cmd)
	if err != nil {
		return err
	}

	lessons, err := s.Lessons(ctx, at)
	if err != nil {
		return fmt.Errorf("failed to fetch lessons: %w", err)
	}
	hours, err := s.Hours(ctx, at)
	if err != nil {
		return fmt.Errorf("failed to fetch hours: %w", err)
	}

	hourIndex := make(map[string]client.AgendaHour, len(hours))
	for _, h := range hours {
		hourIndex[h.HourID] = h
	}

	sortLessons(lessons, hourIndex)

	var lastDate string
	for _, l := range lessons {
		if l.Date != lastDate {
			fmt.Printf("\n%s%s── %s ──%s\n", colorBold, colorCyan, l.Date, colorReset)
			lastDate = l.Date
		}

		h := hourIndex[l.HourID]
		fmt.Printf("%5s-%-5s %-25s %s%-12s %s%s\n",
			h.Start, h.End, l.CourseTitle, colorDim, l.Classroom, l.Teacher, colorReset)

		if l.Note != "" {
			fmt.Printf("            %s%s%s\n", colorYellow, l.Note, colorReset)
		}

		if !cmd.Bool("details") || l.MomentID == "" {
			continue
		}
		infos, err := s.MomentInfos(ctx, l.MomentID, at)
		if err != nil {
			fmt.Printf("            %s(details unavailable: %v)%s\n", colorDim, err, colorReset)
			continue
		}
		for _, info := range infos {
			for _, a := range info.Assignments {
				fmt.Printf("            %s• %s: %s%s\n", colorYellow, a.Type, a.Description, colorReset)
			}
		}
	}
	return nil
}

// sortLessons orders lessons by date, then by the start of their hour.
func sortLessons(lessons []client.AgendaLesson, hours map[string]client.AgendaHour) {
	sort.SliceStable(lessons, func(i, j int) bool {
		if lessons[i].Date != lessons[j].Date {
			return lessons[i].Date < lessons[j].Date
		}
		return hours[lessons[i].HourID].Start < hours[lessons[j].HourID].Start
	})
}

func tasksAction(ctx context.Context, cmd *cli.Command) error {
	s, err := actions.OpenSession(ctx, cmd)
	if err != nil {
		return err
	}

	days, err := s.FutureTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch tasks: %w", err)
	}
	if len(days) == 0 {
		fmt.Printf("%s📭 Nothing planned.%s\n", colorDim, colorReset)
		return nil
	}

	for _, day := range days {
		fmt.Printf("\n%s%s── %s ──%s\n", colorBold, colorCyan, day.PrettyDate, colorReset)
		for _, c := range day.Courses {
			fmt.Printf("%s\n", c.CourseTitle)
			for _, task := range c.Items.Tasks {
				fmt.Printf("  %s• %s%s %s\n", colorYellow, task.Label, colorReset, task.Description)
			}
			if len(c.Items.Materials) > 0 {
				fmt.Printf("  %sMaterials: %s%s\n", colorDim, strings.Join(c.Items.Materials, ", "), colorReset)
			}
		}
	}
	return nil
}

func plannerAction(ctx context.Context, cmd *cli.Command) error {
	s, err := actions.OpenSession(ctx, cmd)
	if err != nil {
		return err
	}

	elements, err := s.PlannedElements(ctx, time.Time{}, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to fetch planner: %w", err)
	}

	sort.SliceStable(elements, func(i, j int) bool {
		return elements[i].Period.DateTimeFrom.Before(elements[j].Period.DateTimeFrom)
	})

	for _, e := range elements {
		var courses []string
		for _, c := range e.Courses {
			courses = append(courses, c.Name)
		}
		kind := ""
		if e.AssignmentType != nil {
			kind = e.AssignmentType.Name
		}
		fmt.Printf("%s %s%-12s%s %-30s %s%s%s\n",
			e.Period.DateTimeFrom.Format("Mon 02/01 15:04"),
			colorYellow, kind, colorReset,
			e.Name,
			colorDim, strings.Join(courses, ", "), colorReset)
	}
	return nil
}
