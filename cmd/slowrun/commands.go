package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/lowaak/slowrun-trainer/internal/calories"
	"github.com/lowaak/slowrun-trainer/internal/checkin"
	"github.com/lowaak/slowrun-trainer/internal/clock"
	"github.com/lowaak/slowrun-trainer/internal/plan"
	"github.com/lowaak/slowrun-trainer/internal/settings"
	"github.com/lowaak/slowrun-trainer/internal/stats"
	"github.com/lowaak/slowrun-trainer/internal/trainer"
)

var (
	statsRecords int

	exportFormat string
	exportOut    string

	checkinMinutes int
	checkinFeeling string
	checkinNotes   string
	checkinDate    string
	checkinMonth   string

	caloriesMinutes     int
	caloriesWeight      float64
	caloriesHeight      float64
	caloriesAge         int
	caloriesGender      string
	caloriesIntensity   string
	caloriesTerrain     string
	caloriesTemperature string
	caloriesRecords     int

	planExperience string
	planTime       string
	planPreference int
	planJoint      bool
	planHeart      bool
	planGoal       string
	planWeight     float64
	planHeight     float64
	planApply      bool
)

func (e *environment) statsStore(cmd *cobra.Command) *stats.Store {
	store := stats.NewStore(e.kv, stats.Options{
		Capacity:   e.cfg.Stats.RecordCapacity,
		AppVersion: version,
	}, e.logger)
	store.Load(cmd.Context())
	return store
}

func (e *environment) calendar(cmd *cobra.Command) *checkin.Calendar {
	cal := checkin.NewCalendar(e.kv, checkin.Options{}, e.logger)
	cal.Load(cmd.Context())
	return cal
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show totals and recent sessions",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().IntVar(&statsRecords, "records", 10, "number of recent sessions to list")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if statsRecords < 0 {
		return fmt.Errorf("--records must be >= 0")
	}
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	store := env.statsStore(cmd)
	agg := store.Aggregate()
	out := cmd.OutOrStdout()
	styled := isTerminal(out)

	totals := [][]string{
		{"Sessions", strconv.Itoa(agg.TotalSessions)},
		{"Total time", fmt.Sprintf("%d min", agg.TotalMinutes())},
		{"Total steps", strconv.Itoa(agg.TotalSteps)},
		{"Calories", fmt.Sprintf("%.0f kcal", agg.TotalCalories)},
		{"Average BPM", strconv.Itoa(agg.AverageBPM)},
		{"Today", fmt.Sprintf("%d min", store.TodaySeconds()/60)},
	}
	if err := renderTable(out, []string{"Total", "Value"}, totals, styled); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	records := store.Records()
	if len(records) > statsRecords {
		records = records[:statsRecords]
	}
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "\nNo sessions yet.")
		return err
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		heartRate := "-"
		if r.AvgHeartRate > 0 {
			heartRate = strconv.Itoa(r.AvgHeartRate)
		}
		rows = append(rows, []string{
			r.Date.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(r.DurationSeconds),
			strconv.Itoa(r.Steps),
			heartRate,
			fmt.Sprintf("%.0f", r.Calories),
		})
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	if err := renderTable(out, stats.CSVHeader, rows, styled); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stats and records as JSON or CSV",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportFormat, "format", "json", "export format: json or csv")
	cmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()
	store := env.statsStore(cmd)

	var write func(io.Writer) error
	switch strings.ToLower(exportFormat) {
	case "json":
		write = store.WriteJSON
	case "csv":
		write = store.WriteCSV
	default:
		return fmt.Errorf("unknown --format %q (want json or csv)", exportFormat)
	}

	if exportOut == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(exportOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", exportOut, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", exportOut, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", exportOut, err)
	}
	env.logger.Printf("Export: wrote %s", exportOut)
	return nil
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace stats and records with a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	store := env.statsStore(cmd)
	if err := store.ImportAll(cmd.Context(), raw); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d sessions.\n", len(store.Records()))
	return err
}

func newCheckinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Record a day's run in the check-in calendar",
		Args:  cobra.NoArgs,
		RunE:  runCheckinCmd,
	}
	cmd.Flags().IntVar(&checkinMinutes, "minutes", 0, "minutes run")
	cmd.Flags().StringVar(&checkinFeeling, "feeling", string(checkin.FeelingGood), "excellent, good, normal, tired or hard")
	cmd.Flags().StringVar(&checkinNotes, "notes", "", "free-text notes")
	cmd.Flags().StringVar(&checkinDate, "date", "", "date (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("minutes")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show a month of check-ins",
		Args:  cobra.NoArgs,
		RunE:  runCheckinShowCmd,
	}
	show.Flags().StringVar(&checkinMonth, "month", "", "month (YYYY-MM, default this month)")
	cmd.AddCommand(show)
	return cmd
}

func runCheckinCmd(cmd *cobra.Command, _ []string) error {
	feeling, err := checkin.ParseFeeling(checkinFeeling)
	if err != nil {
		return err
	}
	date := time.Now()
	if checkinDate != "" {
		date, err = time.ParseInLocation(time.DateOnly, checkinDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date value: %w", err)
		}
	}

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	record, err := env.calendar(cmd).CheckIn(cmd.Context(), date, checkinMinutes, feeling, checkinNotes)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Checked in %s: %d min, %s\n", record.Date, record.Duration, record.Feeling)
	return err
}

func runCheckinShowCmd(cmd *cobra.Command, _ []string) error {
	month := time.Now()
	if checkinMonth != "" {
		var err error
		month, err = time.ParseInLocation("2006-01", checkinMonth, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --month value: %w", err)
		}
	}

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	cal := env.calendar(cmd)
	year, mon := month.Year(), month.Month()
	rows := make([][]string, 0)
	for _, day := range cal.Month(year, mon) {
		if day.Record == nil {
			continue
		}
		rows = append(rows, []string{day.Record.Date, strconv.Itoa(day.Record.Duration), string(day.Record.Feeling), day.Record.Notes})
	}

	out := cmd.OutOrStdout()
	styled := isTerminal(out)
	if len(rows) == 0 {
		if _, err := fmt.Fprintf(out, "No check-ins in %s %d.\n", mon, year); err != nil {
			return err
		}
	} else if err := renderTable(out, []string{"Date", "Minutes", "Feeling", "Notes"}, rows, styled); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	monthStats := cal.Stats(year, mon)
	summary := [][]string{
		{"Current streak", fmt.Sprintf("%d days", monthStats.CurrentStreak)},
		{"Runs this month", strconv.Itoa(monthStats.MonthTotal)},
		{"Minutes this month", strconv.Itoa(monthStats.TotalMinutes)},
		{"Days checked in", strconv.Itoa(monthStats.TotalDays)},
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	return renderTable(out, []string{fmt.Sprintf("%s %d", mon, year), ""}, summary, styled)
}

func newCaloriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calories",
		Short: "Estimate the calories of a planned run",
		Args:  cobra.NoArgs,
		RunE:  runCaloriesCmd,
	}
	cmd.Flags().IntVar(&caloriesMinutes, "minutes", 30, "planned minutes")
	cmd.Flags().Float64Var(&caloriesWeight, "weight", 0, "weight in kg (default from settings)")
	cmd.Flags().Float64Var(&caloriesHeight, "height", 0, "height in cm (default from settings)")
	cmd.Flags().IntVar(&caloriesAge, "age", 0, "age in years (default from settings)")
	cmd.Flags().StringVar(&caloriesGender, "gender", "", "male or female (default from settings)")
	cmd.Flags().StringVar(&caloriesIntensity, "intensity", "", "light, moderate or vigorous")
	cmd.Flags().StringVar(&caloriesTerrain, "terrain", "", "flat, slight-incline, moderate-incline or steep-incline")
	cmd.Flags().StringVar(&caloriesTemperature, "temperature", "", "mild, cold or hot")

	history := &cobra.Command{
		Use:   "history",
		Short: "List saved calorie estimates, newest first",
		Args:  cobra.NoArgs,
		RunE:  runCaloriesHistoryCmd,
	}
	history.Flags().IntVar(&caloriesRecords, "records", calories.DefaultHistoryCapacity, "number of estimates to list")
	cmd.AddCommand(history)
	return cmd
}

func runCaloriesCmd(cmd *cobra.Command, _ []string) error {
	if caloriesMinutes <= 0 {
		return fmt.Errorf("--minutes must be > 0")
	}
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	repo := settings.NewRepository(env.kv, env.logger)
	profile, _ := repo.Load(cmd.Context()).Profile()
	if cmd.Flags().Changed("weight") {
		profile.WeightKg = caloriesWeight
	}
	if cmd.Flags().Changed("height") {
		profile.HeightCm = caloriesHeight
	}
	if cmd.Flags().Changed("age") {
		profile.Age = caloriesAge
	}
	if cmd.Flags().Changed("gender") {
		profile.Gender = calories.Gender(strings.ToLower(caloriesGender))
	}
	if cmd.Flags().Changed("intensity") {
		if profile.Intensity, err = calories.ParseIntensity(caloriesIntensity); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("terrain") {
		if profile.Terrain, err = calories.ParseTerrain(caloriesTerrain); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("temperature") {
		if profile.Temperature, err = calories.ParseTemperature(caloriesTemperature); err != nil {
			return err
		}
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("%w (set --height or `slowrun settings set height=...`)", err)
	}

	b := calories.ProfileEstimator{Profile: profile}.Breakdown(caloriesMinutes)
	history := calories.NewHistory(env.kv, calories.HistoryOptions{}, env.logger)
	history.Load(cmd.Context())
	if err := history.Add(cmd.Context(), calories.NewCalculation(profile, caloriesMinutes, b, time.Now())); err != nil {
		env.logger.Printf("Calories: %v", err)
	}

	rows := [][]string{
		{"Total", fmt.Sprintf("%.0f kcal", b.Total)},
		{"Basal", fmt.Sprintf("%.0f kcal", b.BMR)},
		{"Exercise", fmt.Sprintf("%.0f kcal", b.Exercise)},
		{"Per minute", fmt.Sprintf("%.1f kcal", b.PerMinute)},
		{"METs", fmt.Sprintf("%.2f", b.METs)},
	}
	out := cmd.OutOrStdout()
	return renderTable(out, []string{fmt.Sprintf("%d min", caloriesMinutes), ""}, rows, isTerminal(out))
}

func runCaloriesHistoryCmd(cmd *cobra.Command, _ []string) error {
	if caloriesRecords < 0 {
		return fmt.Errorf("--records must be >= 0")
	}
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	entries := calories.NewHistory(env.kv, calories.HistoryOptions{}, env.logger).Load(cmd.Context())
	if len(entries) > caloriesRecords {
		entries = entries[:caloriesRecords]
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No saved estimates.")
		return err
	}
	rows := make([][]string, 0, len(entries))
	for _, c := range entries {
		rows = append(rows, []string{
			c.Timestamp.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(c.Minutes),
			fmt.Sprintf("%.1f", c.WeightKg),
			fmt.Sprintf("%.0f", c.Total),
			fmt.Sprintf("%.1f", c.PerMinute),
		})
	}
	header := []string{"Date", "Minutes", "Weight", "Total kcal", "Per minute"}
	return renderTable(out, header, rows, isTerminal(out))
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build a weekly training plan and optionally apply its cadence",
		Args:  cobra.NoArgs,
		RunE:  runPlanCmd,
	}
	cmd.Flags().StringVar(&planExperience, "experience", string(plan.ExperienceBeginner), "beginner, intermediate or advanced")
	cmd.Flags().StringVar(&planTime, "time", string(plan.DefaultTime), "training days per week: 2-3, 4-6 or 7+")
	cmd.Flags().IntVar(&planPreference, "intensity", plan.DefaultPreference, "intensity preference from 1 (gentle) to 5 (hard)")
	cmd.Flags().BoolVar(&planJoint, "joint", false, "joint problems")
	cmd.Flags().BoolVar(&planHeart, "heart", false, "heart condition")
	cmd.Flags().StringVar(&planGoal, "goal", string(plan.DefaultGoal), "weight-loss, health, endurance or stress-relief")
	cmd.Flags().Float64Var(&planWeight, "weight", 0, "weight in kg (default from settings)")
	cmd.Flags().Float64Var(&planHeight, "height", 0, "height in cm (default from settings)")
	cmd.Flags().BoolVar(&planApply, "apply", false, "set the metronome and workout length from the plan")
	return cmd
}

func runPlanCmd(cmd *cobra.Command, _ []string) error {
	experience, err := plan.ParseExperience(planExperience)
	if err != nil {
		return err
	}
	goal, err := plan.ParseGoal(planGoal)
	if err != nil {
		return err
	}
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	in := plan.Input{
		Experience: experience,
		Time:       plan.AvailableTime(strings.TrimSpace(planTime)),
		Preference: planPreference,
		Joint:      planJoint,
		Heart:      planHeart,
		Goal:       goal,
	}
	current := settings.NewRepository(env.kv, env.logger).Load(cmd.Context())
	in.WeightKg, in.HeightCm = planWeight, planHeight
	if !cmd.Flags().Changed("weight") {
		in.WeightKg = current.WeightKg
	}
	if !cmd.Flags().Changed("height") {
		in.HeightCm = current.HeightCm
	}
	if in.HeightCm <= 0 && !cmd.Flags().Changed("weight") {
		// Settings carry a weight by default but no height
		in.WeightKg = 0
	}
	p, err := plan.Build(in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	styled := isTerminal(out)
	summary := [][]string{
		{"Goal", string(p.Goal)},
		{"Sessions per week", strconv.Itoa(p.SessionsPerWeek)},
		{"Session length", fmt.Sprintf("%d-%d min", p.MinMinutes, p.MaxMinutes)},
		{"Target BPM", strconv.Itoa(p.TargetBPM)},
		{"Intensity", string(p.Intensity)},
	}
	if p.BMI > 0 {
		summary = append(summary, []string{"BMI", fmt.Sprintf("%.1f (%s)", p.BMI, p.BMICategory)})
	}
	if err := renderTable(out, []string{string(p.Experience) + " plan", ""}, summary, styled); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	week := make([][]string, 0, len(p.Week))
	for _, d := range p.Week {
		minutes := "-"
		if d.Kind != plan.DayRest {
			minutes = fmt.Sprintf("%d-%d", d.MinMinutes, d.MaxMinutes)
		}
		week = append(week, []string{d.Weekday.String(), string(d.Kind), minutes})
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return err
	}
	if err := renderTable(out, []string{"Day", "Session", "Minutes"}, week, styled); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !planApply {
		return nil
	}

	app, err := trainer.NewApp(trainer.AppArgs{
		Config:     env.cfg,
		KV:         env.kv,
		Scheduler:  clock.NewTickerScheduler(clockwork.NewRealClock(), env.logger),
		AppVersion: version,
		Location:   time.Local,
		Logger:     env.logger,
	})
	if err != nil {
		return err
	}
	app.Load(cmd.Context())
	defer app.Shutdown()
	bpm, minutes, err := app.ApplyPlan(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "\nMetronome set to %d BPM, workout length %d min.\n", bpm, minutes)
	return err
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the user profile",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current profile",
		Args:  cobra.NoArgs,
		RunE:  runSettingsShowCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "Change profile fields (" + strings.Join(settings.Fields(), ", ") + ")",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSettingsSetCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the saved profile",
		Args:  cobra.NoArgs,
		RunE:  runSettingsResetCmd,
	})
	return cmd
}

func runSettingsShowCmd(cmd *cobra.Command, _ []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	repo := settings.NewRepository(env.kv, env.logger)
	s := repo.Load(cmd.Context())
	rows := [][]string{
		{"weight", strconv.FormatFloat(s.WeightKg, 'f', -1, 64)},
		{"height", strconv.FormatFloat(s.HeightCm, 'f', -1, 64)},
		{"age", strconv.Itoa(s.Age)},
		{"gender", s.Gender},
		{"intensity", s.Intensity},
		{"terrain", s.Terrain},
		{"temperature", s.Temperature},
		{"defaultBpm", strconv.Itoa(s.DefaultBPM)},
		{"minHR", strconv.Itoa(s.MinHR)},
		{"maxHR", strconv.Itoa(s.MaxHR)},
		{"soundEnabled", strconv.FormatBool(s.SoundEnabled)},
		{"vibrationEnabled", strconv.FormatBool(s.VibrationEnabled)},
		{"voiceEnabled", strconv.FormatBool(s.VoiceEnabled)},
	}
	title := "Setting"
	if !repo.Saved() {
		title = "Setting (defaults)"
	}
	out := cmd.OutOrStdout()
	return renderTable(out, []string{title, "Value"}, rows, isTerminal(out))
}

func runSettingsSetCmd(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	repo := settings.NewRepository(env.kv, env.logger)
	s := repo.Load(cmd.Context())
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected KEY=VALUE, got %q", arg)
		}
		if s, err = s.With(strings.TrimSpace(key), value); err != nil {
			return err
		}
	}
	if err := repo.Save(cmd.Context(), s); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Settings saved.")
	return err
}

func runSettingsResetCmd(cmd *cobra.Command, _ []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := settings.NewRepository(env.kv, env.logger).Reset(cmd.Context()); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Settings reset to defaults.")
	return err
}
