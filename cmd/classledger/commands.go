package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hrygo/classledger/server/scheduler"
	"github.com/hrygo/classledger/server/service/attendance"
	"github.com/hrygo/classledger/server/stats"
	"github.com/hrygo/classledger/server/timezone"
	"github.com/hrygo/classledger/store"
)

func newTimelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline [weekday|date]",
		Short: "Show the resolved timeline of one weekday",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			weekday, err := weekdayArg(a, args)
			if err != nil {
				return err
			}
			timeline, err := a.timetable.Timeline(ctx, a.profile.Semester, weekday)
			if err != nil {
				return err
			}
			names, err := subjectNames(ctx, a)
			if err != nil {
				return err
			}
			renderTimeline(cmd.OutOrStdout(), timeline, names)
			return nil
		}),
	}
}

func newWeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week",
		Short: "Show the resolved timeline of every weekday",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			week, err := a.timetable.Week(ctx, a.profile.Semester)
			if err != nil {
				return err
			}
			names, err := subjectNames(ctx, a)
			if err != nil {
				return err
			}
			for _, day := range week {
				renderTimeline(cmd.OutOrStdout(), day, names)
			}
			return nil
		}),
	}
}

func newDayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "day [date]",
		Short: "Show the classes of a date with their attendance",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			date := a.today()
			if len(args) == 1 {
				date = args[0]
			}
			classes, err := a.mutator.SelectDate(ctx, date)
			if err != nil && classes == nil {
				return err
			}
			renderDay(cmd.OutOrStdout(), date, classes)
			return err
		}),
	}
}

func newMarkCmd() *cobra.Command {
	var date, note string
	cmd := &cobra.Command{
		Use:   "mark <subject> <status> [<subject> <status>...]",
		Short: "Mark attendance of one or more subjects",
		Long: "Mark attendance. Subjects are matched by id, code or name. Statuses: " +
			joinStatuses() + ". Marking pending clears the log.",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return errors.New("expected <subject> <status> pairs")
			}
			return nil
		},
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if date == "" {
				date = a.today()
			}
			if _, err := a.mutator.SelectDate(ctx, date); err != nil {
				return err
			}

			marks := make([]attendance.BatchMark, 0, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				subject, err := resolveSubject(ctx, a, args[i])
				if err != nil {
					return err
				}
				status, err := store.ParseStatus(args[i+1])
				if err != nil {
					return err
				}
				marks = append(marks, attendance.BatchMark{SubjectID: subject.ID, Status: status, Note: note})
			}

			if _, err := a.mutator.MarkBatch(ctx, date, marks); err != nil {
				return err
			}
			a.mutator.Wait()
			renderDay(cmd.OutOrStdout(), date, a.mutator.Day())
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "date to mark (default today)")
	cmd.Flags().StringVar(&note, "note", "", "note attached to every mark")
	return cmd
}

func newClearCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "clear <subject>",
		Short: "Clear the attendance of a subject on a date",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if date == "" {
				date = a.today()
			}
			subject, err := resolveSubject(ctx, a, args[0])
			if err != nil {
				return err
			}
			if _, err := a.mutator.SelectDate(ctx, date); err != nil {
				return err
			}
			if err := a.mutator.Clear(ctx, subject.ID, date, ""); err != nil {
				return err
			}
			a.mutator.Wait()
			renderDay(cmd.OutOrStdout(), date, a.mutator.Day())
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "date to clear (default today)")
	return cmd
}

func newMonthCmd() *cobra.Command {
	var (
		exclude []string
		icsPath string
	)
	cmd := &cobra.Command{
		Use:   "month [YYYY-MM]",
		Short: "Show a month's tally and the dates still unmarked",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			today := a.today()
			monthKey, _ := timezone.MonthOf(today)
			if len(args) == 1 {
				monthKey = args[0]
			}

			data, err := a.mutator.Month(ctx, monthKey)
			if err != nil {
				return err
			}
			tt, err := a.store.FetchTimetable(ctx, a.profile.Semester)
			if err != nil {
				return err
			}
			occurrences, err := scheduler.ClassDates(tt, monthKey, scheduler.Options{Exclude: exclude})
			if err != nil {
				return err
			}
			names, err := subjectNames(ctx, a)
			if err != nil {
				return err
			}

			renderMonth(cmd.OutOrStdout(), monthKey, stats.MonthTally(data), names,
				len(occurrences), scheduler.UnmarkedDates(occurrences, data, today))

			if icsPath != "" {
				feed := scheduler.Calendar(occurrences, names, a.location, time.Now())
				if err := os.WriteFile(icsPath, []byte(feed), 0o644); err != nil {
					return errors.Wrapf(err, "failed to write %s", icsPath)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d classes to %s\n", len(occurrences), icsPath)
			}
			return nil
		}),
	}
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "dates without classes (holidays)")
	cmd.Flags().StringVar(&icsPath, "ics", "", "also write the month's classes as an iCalendar file")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show attendance standing per subject",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			summaries, err := a.stats.Summaries(ctx, a.profile.Semester)
			if err != nil {
				return err
			}
			overall, err := a.stats.Overall(ctx, a.profile.Semester)
			if err != nil {
				return err
			}
			renderStats(cmd.OutOrStdout(), a.stats.Threshold(), summaries, overall)
			return nil
		}),
	}
}

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Manage semester results",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List semester results",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			results, err := a.stats.Results(ctx)
			if err != nil {
				return err
			}
			renderResults(cmd.OutOrStdout(), results)
			return nil
		}),
	}

	var file string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a semester result from a YAML file",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			result, err := readResultFile(file)
			if err != nil {
				return err
			}
			saved, err := a.stats.SaveResult(ctx, result)
			if err != nil {
				return err
			}
			renderResults(cmd.OutOrStdout(), []*store.SemesterResult{saved})
			return nil
		}),
	}
	add.Flags().StringVarP(&file, "file", "f", "", "YAML result file")
	_ = add.MarkFlagRequired("file")

	del := &cobra.Command{
		Use:   "delete <semester>",
		Short: "Delete a semester result",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			semester, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Wrapf(err, "invalid semester %q", args[0])
			}
			if err := a.stats.DeleteResult(ctx, semester); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted result of semester %d\n", semester)
			return nil
		}),
	}

	cgpa := &cobra.Command{
		Use:   "cgpa",
		Short: "Show the cumulative grade point average",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			summary, err := a.stats.CGPA(ctx)
			if err != nil {
				return err
			}
			renderCGPA(cmd.OutOrStdout(), summary)
			return nil
		}),
	}

	cmd.AddCommand(list, add, del, cgpa)
	return cmd
}

func newStructureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "structure",
		Short: "Edit the bell schedule of the semester",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "List the periods",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			periods, err := a.timetable.Structure(ctx, a.profile.Semester)
			if err != nil {
				return err
			}
			renderPeriods(cmd.OutOrStdout(), periods)
			return nil
		}),
	}

	var start, end, kind string
	addPeriod := &cobra.Command{
		Use:   "add-period",
		Short: "Add a period",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			periods, conflicts, err := a.timetable.AddPeriod(ctx, a.profile.Semester, &store.Period{
				StartTime: start,
				EndTime:   end,
				Kind:      store.Kind(kind),
			})
			if err != nil {
				return err
			}
			renderPeriods(cmd.OutOrStdout(), periods)
			for _, c := range conflicts {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", c.String())
			}
			return nil
		}),
	}
	addPeriod.Flags().StringVar(&start, "start", "", "start time, e.g. 09:00 AM")
	addPeriod.Flags().StringVar(&end, "end", "", "end time, e.g. 10:00 AM")
	addPeriod.Flags().StringVar(&kind, "kind", string(store.KindClass), "class or break")
	_ = addPeriod.MarkFlagRequired("start")
	_ = addPeriod.MarkFlagRequired("end")

	deletePeriod := &cobra.Command{
		Use:   "delete-period <id>",
		Short: "Delete a period; its assignments are kept",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			periods, err := a.timetable.DeletePeriod(ctx, a.profile.Semester, args[0])
			if err != nil {
				return err
			}
			renderPeriods(cmd.OutOrStdout(), periods)
			return nil
		}),
	}

	cmd.AddCommand(show, addPeriod, deletePeriod)
	return cmd
}

func newSlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Edit weekday slot assignments",
	}

	var weekday, start, end, subject, kind, room string
	add := &cobra.Command{
		Use:   "add",
		Short: "Assign a subject (or a break/free slot) to a weekday time",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			wd, err := parseWeekday(weekday)
			if err != nil {
				return err
			}
			slot := &store.SlotAssignment{
				Weekday:   wd,
				StartTime: start,
				EndTime:   end,
				Kind:      store.Kind(kind),
				Classroom: room,
			}
			if subject != "" {
				s, err := resolveSubject(ctx, a, subject)
				if err != nil {
					return err
				}
				slot.SubjectID = s.ID
			}
			saved, err := a.timetable.SaveSlot(ctx, a.profile.Semester, slot)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved slot %s on %s at %s\n", saved.ID, saved.Weekday, saved.StartTime)
			return nil
		}),
	}
	add.Flags().StringVar(&weekday, "weekday", "", "weekday, e.g. monday")
	add.Flags().StringVar(&start, "start", "", "start time")
	add.Flags().StringVar(&end, "end", "", "end time")
	add.Flags().StringVar(&subject, "subject", "", "subject id, code or name")
	add.Flags().StringVar(&kind, "kind", "", "class, break, free or custom (default class)")
	add.Flags().StringVar(&room, "room", "", "classroom")
	_ = add.MarkFlagRequired("weekday")
	_ = add.MarkFlagRequired("start")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a slot assignment",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.timetable.DeleteSlot(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted slot %s\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(add, del)
	return cmd
}

func newSubjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subject",
		Short: "Manage subjects",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the subjects of the semester",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			subjects, err := a.store.FetchSubjects(ctx, a.profile.Semester)
			if err != nil {
				return err
			}
			renderSubjects(cmd.OutOrStdout(), subjects)
			return nil
		}),
	}

	var code string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a subject",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("subject name is required")
			}
			saved, err := a.store.SaveSubject(ctx, a.profile.Semester, &store.Subject{Name: name, Code: code})
			if err != nil {
				return err
			}
			a.stats.Invalidate(a.profile.Semester)
			fmt.Fprintf(cmd.OutOrStdout(), "added subject %s (%s)\n", saved.Name, saved.ID)
			return nil
		}),
	}
	add.Flags().StringVar(&code, "code", "", "subject code")

	cmd.AddCommand(list, add)
	return cmd
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [date]",
		Short: "Re-fetch the buffered months and the selected day",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			date := a.today()
			if len(args) == 1 {
				date = args[0]
			}
			if _, err := a.mutator.SelectDate(ctx, date); err != nil {
				return err
			}
			if err := a.mutator.Refresh(ctx); err != nil {
				return err
			}
			if err := a.stats.Refresh(ctx, a.profile.Semester); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed %s\n", strings.Join(a.mutator.Buffer().Cache().Keys(), ", "))
			return nil
		}),
	}
}

// weekdayArg resolves an optional weekday or date argument, defaulting to
// today.
func weekdayArg(a *app, args []string) (time.Weekday, error) {
	if len(args) == 0 {
		return timezone.WeekdayOf(a.today())
	}
	if timezone.IsValidDate(args[0]) {
		return timezone.WeekdayOf(args[0])
	}
	return parseWeekday(args[0])
}

func parseWeekday(text string) (time.Weekday, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if len(t) >= 3 {
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			if strings.HasPrefix(strings.ToLower(wd.String()), t) {
				return wd, nil
			}
		}
	}
	return 0, errors.Errorf("unknown weekday %q", text)
}

// resolveSubject matches ref against subject ids, then codes, then names.
func resolveSubject(ctx context.Context, a *app, ref string) (*store.Subject, error) {
	subjects, err := a.store.FetchSubjects(ctx, a.profile.Semester)
	if err != nil {
		return nil, err
	}
	for _, s := range subjects {
		if s.ID == ref {
			return s, nil
		}
	}
	for _, s := range subjects {
		if s.Code != "" && strings.EqualFold(s.Code, ref) {
			return s, nil
		}
	}
	for _, s := range subjects {
		if strings.EqualFold(s.Name, ref) {
			return s, nil
		}
	}
	return nil, errors.Errorf("no subject %q in semester %d", ref, a.profile.Semester)
}

func subjectNames(ctx context.Context, a *app) (map[string]string, error) {
	subjects, err := a.store.FetchSubjects(ctx, a.profile.Semester)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(subjects))
	for _, s := range subjects {
		names[s.ID] = s.Name
	}
	return names, nil
}

var resultValidator = validator.New()

func readResultFile(path string) (*store.SemesterResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	var result store.SemesterResult
	if err := yaml.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	if err := resultValidator.Struct(&result); err != nil {
		return nil, errors.Wrapf(err, "invalid result in %s", path)
	}
	return &result, nil
}

func joinStatuses() string {
	names := make([]string, 0, len(store.Statuses))
	for _, s := range store.Statuses {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
