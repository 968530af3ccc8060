package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jgoulah/gridflow/internal/publisher"
	"github.com/spf13/cobra"
)

var (
	publishMQTT   bool
	publishInflux bool
	publishDryRun bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the stored snapshot to MQTT and InfluxDB",
	Long: `Reads the SQLite snapshot of the last saved run and publishes the serial totals
and peak feed-in hours as retained MQTT messages, and the hourly totals as InfluxDB points.
Without --mqtt or --influx, every sink enabled in the config is used.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&publishMQTT, "mqtt", false, "Publish to MQTT")
	publishCmd.Flags().BoolVar(&publishInflux, "influx", false, "Write to InfluxDB")
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "Show what would be published without connecting")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	useMQTT, useInflux := publishMQTT, publishInflux
	if !useMQTT && !useInflux {
		useMQTT, useInflux = cfg.MQTT.Enabled, cfg.InfluxDB.Enabled
	}
	if !useMQTT && !useInflux {
		return fmt.Errorf("no sink selected: pass --mqtt or --influx, or enable one in config")
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
		return fmt.Errorf("no snapshot in %s; run `gridflow run --save` first", getDBPath(cfg))
	}

	summaries, err := db.ListSerialSummary()
	if err != nil {
		return fmt.Errorf("listing serial summary: %w", err)
	}
	hourly, err := db.ListHourly()
	if err != nil {
		return fmt.Errorf("listing hourly totals: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	if useMQTT {
		msgs, err := publisher.BuildMessages(cfg.GetTopicPrefix(), summaries, hourly)
		if err != nil {
			return fmt.Errorf("building messages: %w", err)
		}

		if publishDryRun {
			for _, m := range msgs {
				fmt.Printf("  [dry-run] %s %s\n", m.Topic, m.Payload)
			}
			fmt.Printf("✓ Would publish %d MQTT messages\n", len(msgs))
		} else {
			if cfg.MQTT.Broker == "" {
				return fmt.Errorf("mqtt.broker is not set in config")
			}
			pub, err := publisher.NewMQTT(cfg.MQTT, cfg.GetTopicPrefix())
			if err != nil {
				return fmt.Errorf("creating MQTT publisher: %w", err)
			}
			err = pub.Publish(msgs)
			pub.Close()
			if err != nil {
				return err
			}
			fmt.Printf("✓ Published %d MQTT messages to %s\n", len(msgs), cfg.MQTT.Broker)
		}
	}

	if useInflux {
		if publishDryRun {
			points := publisher.HourlyPoints(cfg.GetMeasurement(), hourly)
			fmt.Printf("✓ Would write %d points to InfluxDB measurement %s\n", len(points), cfg.GetMeasurement())
		} else {
			if cfg.InfluxDB.URL == "" || cfg.InfluxDB.Org == "" || cfg.InfluxDB.Bucket == "" {
				return fmt.Errorf("influxdb.url, influxdb.org and influxdb.bucket must be set in config")
			}
			sink, err := publisher.NewInflux(ctx, cfg.InfluxDB, cfg.GetMeasurement())
			if err != nil {
				return fmt.Errorf("creating InfluxDB client: %w", err)
			}
			n, err := sink.WriteHourly(ctx, hourly)
			sink.Close()
			if err != nil {
				return err
			}
			fmt.Printf("✓ Wrote %d points to %s\n", n, cfg.InfluxDB.URL)
		}
	}

	return nil
}
