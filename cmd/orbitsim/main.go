package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/experiment"
	"github.com/san-kum/orbitsim/internal/optim"
	"github.com/san-kum/orbitsim/internal/storage"
)

var (
	configFile string
	integrator string
	mode       string
	duration   float64
	outputStep float64
	jobs       int
	element    string
	outPath    string
	noSave     bool
	live       bool
	sweeps     []string
	metricName string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "orbitsim",
		Short:        "numerical spacecraft orbit propagation",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().String("data", ".orbitsim", "data directory")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	_ = viper.BindPFlag("data", rootCmd.PersistentFlags().Lookup("data"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	runCmd := &cobra.Command{
		Use:   "run [preset...]",
		Short: "propagate one or more scenarios",
		Long: "Propagate the named presets, or the scenario given with --config. " +
			"Several presets run concurrently.",
		RunE: runScenarios,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	runCmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	runCmd.Flags().StringVar(&mode, "mode", "master", "output mode: master or ephemeris")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration in seconds, negative to go backward")
	runCmd.Flags().Float64Var(&outputStep, "output-step", config.DefaultOutputStep, "sampling interval in seconds")
	runCmd.Flags().IntVar(&jobs, "jobs", 0, "concurrent runs, 0 for no limit")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&live, "live", false, "follow the run in a terminal view")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list scenario presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	integratorsCmd := &cobra.Command{
		Use:   "integrators",
		Short: "list integrators",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range experiment.NewRegistry().ListIntegrators() {
				fmt.Println(name)
			}
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&element, "element", "a", "column to plot (a, e, i, mass, altitude, delta_v, ...)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file, stdout when empty")

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "grid search scenario parameters for the smallest metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepScenario,
	}
	sweepCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	sweepCmd.Flags().StringArrayVar(&sweeps, "param", nil, "parameter values, e.g. step=10,30,60 (repeatable)")
	sweepCmd.Flags().StringVar(&metricName, "metric", "energy_drift", "metric to minimize")
	sweepCmd.Flags().IntVar(&jobs, "jobs", 0, "concurrent runs, 0 for no limit")

	rootCmd.AddCommand(runCmd, presetsCmd, integratorsCmd, listCmd, plotCmd, exportCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initConfig reads optional CLI settings from .orbitsim.yaml and
// ORBITSIM_* environment variables. A missing settings file is fine, a
// malformed one is an error.
func initConfig() error {
	viper.SetConfigName(".orbitsim")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetEnvPrefix("ORBITSIM")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading settings: %w", err)
		}
	}
	return nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newStore() *storage.Store {
	return storage.New(viper.GetString("data"))
}

// scenarios returns the configurations selected by the arguments, with the
// flags the user set applied on top.
func scenarios(cmd *cobra.Command, args []string) ([]*config.Config, error) {
	var cfgs []*config.Config
	switch {
	case configFile != "":
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfgs = append(cfgs, cfg)
	case len(args) == 0:
		cfgs = append(cfgs, config.GetPreset("leo"))
	default:
		for _, name := range args {
			cfg := config.GetPreset(name)
			if cfg == nil {
				return nil, fmt.Errorf("unknown preset: %s (have %s)", name, strings.Join(config.ListPresets(), ", "))
			}
			cfgs = append(cfgs, cfg)
		}
	}

	flags := cmd.Flags()
	for _, cfg := range cfgs {
		if flags.Changed("integrator") {
			cfg.Integrator = integrator
		}
		if flags.Changed("mode") {
			cfg.Mode = mode
		}
		if flags.Changed("time") {
			cfg.Duration = duration
		}
		if flags.Changed("output-step") {
			cfg.OutputStep = outputStep
		}
	}
	return cfgs, nil
}

func runScenarios(cmd *cobra.Command, args []string) error {
	cfgs, err := scenarios(cmd, args)
	if err != nil {
		return err
	}

	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var results []*experiment.Result
	if live {
		if len(cfgs) != 1 {
			return fmt.Errorf("--live follows a single scenario, got %d", len(cfgs))
		}
		res, err := runLive(ctx, cfgs[0], experiment.WithLogger(logger))
		if err != nil {
			return err
		}
		results = append(results, res)
	} else {
		results, err = runExperiments(ctx, cfgs, logger)
		if err != nil {
			return err
		}
	}

	st := newStore()
	if !noSave {
		if err := st.Init(); err != nil {
			return err
		}
	}
	for i, res := range results {
		runID := ""
		if !noSave {
			runID, err = st.Save(cfgs[i], res)
			if err != nil {
				return err
			}
		}
		fmt.Println(renderSummary(runID, cfgs[i], res))
	}
	return nil
}

// runExperiments runs one scenario directly and several concurrently.
func runExperiments(ctx context.Context, cfgs []*config.Config, logger *slog.Logger) ([]*experiment.Result, error) {
	exps := make([]*experiment.Experiment, len(cfgs))
	for i, cfg := range cfgs {
		exps[i] = experiment.New(cfg, experiment.WithLogger(logger.With(slog.String("scenario", cfg.Name))))
		if err := exps[i].Setup(); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
	}
	if len(exps) == 1 {
		res, err := exps[0].Run(ctx)
		if err != nil {
			return nil, err
		}
		return []*experiment.Result{res}, nil
	}
	return experiment.RunBatch(ctx, exps, jobs)
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tORBIT\tDURATION\tEVENTS")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		o, err := cfg.InitialOrbit()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\ta=%.0f km e=%.3f i=%.1f°\t%s\t%s\n",
			name,
			o.A()/1e3,
			o.E(),
			cfg.Orbit.Inclination,
			(time.Duration(cfg.Duration) * time.Second).String(),
			presetEvents(cfg),
		)
	}
	return w.Flush()
}

func presetEvents(cfg *config.Config) string {
	var evs []string
	if cfg.Events.StopAtApogee {
		evs = append(evs, "apogee stop")
	}
	if cfg.Events.StopAtNode {
		evs = append(evs, "node stop")
	}
	if cfg.Thrust.Enabled() {
		evs = append(evs, "thrust")
	}
	if cfg.Events.HasManeuver() {
		evs = append(evs, "maneuver")
	}
	if len(evs) == 0 {
		return "-"
	}
	return strings.Join(evs, ", ")
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := newStore().List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tDURATION\tINTEG\tTYPE\tSAMPLES\tEVENTS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0fs\t%s\t%s/%s\t%d\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Integrator,
			run.OrbitType,
			run.AngleType,
			run.Samples,
			len(run.Events),
		)
	}

	return w.Flush()
}

var captions = map[string]string{
	"a":        "semi-major axis (m)",
	"e":        "eccentricity",
	"i":        "inclination (rad)",
	"mass":     "mass (kg)",
	"altitude": "altitude (m)",
	"delta_v":  "accumulated delta-v (m/s)",
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := newStore()
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	table, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(table.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}
	data, err := table.Column(element)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Name)
	fmt.Printf("samples: %d\n\n", len(data))

	caption, ok := captions[element]
	if !ok {
		caption = element
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
	fmt.Println(graph)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	data, err := newStore().Export(args[0])
	if err != nil {
		return err
	}
	if outPath == "" {
		return storage.WriteJSON(os.Stdout, data)
	}
	if err := storage.ExportJSON(outPath, data); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outPath)
	return nil
}

// parseSweep splits name=v1,v2,... flags into names and value ranges.
func parseSweep(specs []string) ([]string, [][]float64, error) {
	if len(specs) == 0 {
		return nil, nil, fmt.Errorf("no --param given (have %s)", strings.Join(optim.Parameters(), ", "))
	}
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || list == "" {
			return nil, nil, fmt.Errorf("invalid --param %q, want name=v1,v2", spec)
		}
		var values []float64
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("--param %s: %w", name, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

func sweepScenario(cmd *cobra.Command, args []string) error {
	cfgs, err := scenarios(cmd, args)
	if err != nil {
		return err
	}
	names, ranges, err := parseSweep(sweeps)
	if err != nil {
		return err
	}
	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	g.WithLimit(jobs).WithOptions(experiment.WithLogger(newLogger()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	best, points, err := g.Search(ctx, cfgs[0], metricName)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metricName))
	for _, p := range points {
		row := make([]string, 0, len(names)+1)
		for _, name := range names {
			row = append(row, strconv.FormatFloat(p.Params[name], 'g', -1, 64))
		}
		row = append(row, fmt.Sprintf("%.6g", p.Value))
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nbest: %v -> %.6g\n", best.Params, best.Value)
	return nil
}
