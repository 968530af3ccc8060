package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/gridflow/internal/config"
	"github.com/jgoulah/gridflow/internal/export"
	"github.com/jgoulah/gridflow/internal/logger"
	"github.com/jgoulah/gridflow/internal/metrics"
	"github.com/jgoulah/gridflow/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	runOutDir      string
	runXLSX        string
	runMetricsFile string
	runSave        bool
)

var runCmd = &cobra.Command{
	Use:   "run [input]",
	Short: "Clean measurements and write hourly and per-serial totals",
	Long: `Loads the semicolon-separated measurements file, removes duplicate and empty
readings, and writes three CSV files: the cleaned records, hourly grid totals with
peak feed-in flags, and totals per meter serial sorted by grid purchase.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runOutDir, "out-dir", "", "Directory for output files (default: config outputs.dir, else current directory)")
	runCmd.Flags().StringVar(&runXLSX, "xlsx", "", "Also write an XLSX workbook to this path")
	runCmd.Flags().StringVar(&runMetricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")
	runCmd.Flags().BoolVar(&runSave, "save", false, "Store the results in the SQLite snapshot (default: config database.enabled)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Run started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyRunFlags(cfg, args)

	input := cfg.GetInput()
	p := pipeline.New(cfg.GetDelimiter(), cfg.GetTimeLayouts())

	fmt.Printf("Processing %s...\n", input)
	res, err := p.Run(input)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	st := res.Stats
	fmt.Printf("✓ Loaded %s rows\n", humanize.Comma(int64(st.Loaded)))
	fmt.Printf("✓ Removed %s duplicates and %s empty readings\n",
		humanize.Comma(int64(st.Duplicates)), humanize.Comma(int64(st.AllMissing)))
	if n := totalFailures(st.CoercionFailures); n > 0 {
		fmt.Printf("  %s unparseable cells treated as missing (%s)\n", humanize.Comma(int64(n)), formatFailures(st.CoercionFailures))
	}
	if st.DateMismatches > 0 {
		fmt.Printf("  %s records have a timestamp on a different day than their date\n", humanize.Comma(int64(st.DateMismatches)))
	}

	if err := export.WriteCleanCSV(cfg.GetCleanPath(), res.Columns, res.ExtraColumns, res.Clean); err != nil {
		return err
	}
	fmt.Printf("✓ Wrote %s clean records to %s\n", humanize.Comma(int64(st.Clean)), cfg.GetCleanPath())

	if err := export.WriteHourlyCSV(cfg.GetHourlyPath(), res.Hourly); err != nil {
		return err
	}
	fmt.Printf("✓ Wrote %s hourly buckets (%s peak) to %s\n",
		humanize.Comma(int64(st.HourlyBuckets)), humanize.Comma(int64(st.PeakBuckets)), cfg.GetHourlyPath())

	if err := export.WriteSummaryCSV(cfg.GetSummaryPath(), res.Summary); err != nil {
		return err
	}
	fmt.Printf("✓ Wrote %s serial totals to %s\n", humanize.Comma(int64(st.Serials)), cfg.GetSummaryPath())

	if xlsx := cfg.GetXLSXPath(); xlsx != "" {
		if err := export.WriteWorkbook(xlsx, res); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote workbook to %s\n", xlsx)
	}

	if runSave || cfg.Database.Enabled {
		db, err := openDB(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		id, err := db.SaveRun(input, res)
		if err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		fmt.Printf("✓ Saved snapshot %s to %s\n", id, getDBPath(cfg))
	}

	if cfg.MetricsFile != "" {
		m := metrics.NewRun()
		m.Observe(st)
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
		logger.Info("Wrote metrics to %s", cfg.MetricsFile)
	}

	fmt.Printf("\nDone in %s\n", st.Duration.Round(time.Millisecond))
	return nil
}

// applyRunFlags lets command-line values override the config file
func applyRunFlags(cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Input = args[0]
	}
	if runOutDir != "" {
		cfg.Outputs.Dir = runOutDir
	}
	if runXLSX != "" {
		cfg.Outputs.XLSX = runXLSX
	}
	if runMetricsFile != "" {
		cfg.MetricsFile = runMetricsFile
	}
}

func totalFailures(failures map[string]int) int {
	n := 0
	for _, c := range failures {
		n += c
	}
	return n
}

func formatFailures(failures map[string]int) string {
	cols := make([]string, 0, len(failures))
	for col := range failures {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	s := ""
	for i, col := range cols {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %s", col, humanize.Comma(int64(failures[col])))
	}
	return s
}
