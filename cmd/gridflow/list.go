package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/gridflow/internal/export"
	"github.com/spf13/cobra"
)

var (
	listPeaks bool
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored serial totals",
	Long:  `Displays the per-serial totals, and optionally the peak feed-in hours, from the SQLite snapshot of the last saved run.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listPeaks, "peaks", false, "Also show peak feed-in hours")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Limit number of serials shown (0 = no limit)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Open database
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	run, err := db.LatestRun()
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	if run == nil {
		fmt.Println("No snapshot found. Run `gridflow run --save` first.")
		return nil
	}

	fmt.Printf("Snapshot %s of %s, saved %s\n", run.ID, run.Source, humanize.Time(run.CreatedAt))
	fmt.Printf("%s rows loaded, %s clean\n", humanize.Comma(int64(run.Loaded)), humanize.Comma(int64(run.Clean)))

	summaries, err := db.ListSerialSummary()
	if err != nil {
		return fmt.Errorf("listing serial summary: %w", err)
	}

	fmt.Println("\nSerial Totals:")
	fmt.Println("------------------------------------------------------")
	fmt.Printf("%-20s  %14s  %14s\n", "Serial", "Purchase", "Feed-in")
	fmt.Println("------------------------------------------------------")

	var purchase, feedin float64
	for i, s := range summaries {
		purchase += s.GridPurchase
		feedin += s.GridFeedin
		if listLimit > 0 && i >= listLimit {
			continue
		}
		fmt.Printf("%-20s  %14s  %14s\n", s.Serial, humanize.CommafWithDigits(s.GridPurchase, 2), humanize.CommafWithDigits(s.GridFeedin, 2))
	}

	fmt.Println("------------------------------------------------------")
	fmt.Printf("Total: %s purchase, %s feed-in (%d serials)\n",
		humanize.CommafWithDigits(purchase, 2), humanize.CommafWithDigits(feedin, 2), len(summaries))

	if !listPeaks {
		return nil
	}

	peaks, err := db.ListPeakHours()
	if err != nil {
		return fmt.Errorf("listing peak hours: %w", err)
	}

	fmt.Println("\nPeak Feed-in Hours:")
	fmt.Println("----------------------------------------")
	fmt.Printf("%-12s  %4s  %14s\n", "Date", "Hour", "Feed-in")
	fmt.Println("----------------------------------------")
	for _, b := range peaks {
		date := export.FormatDate(b.Date)
		if date == "" {
			date = "(none)"
		}
		hour := export.FormatHour(b.Hour)
		if hour == "" {
			hour = "-"
		}
		fmt.Printf("%-12s  %4s  %14s\n", date, hour, humanize.CommafWithDigits(b.GridFeedin, 2))
	}

	return nil
}
