package publisher

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/jgoulah/gridflow/internal/config"
	"github.com/jgoulah/gridflow/internal/logger"
	"github.com/jgoulah/gridflow/pkg/models"
)

// InfluxPublisher writes hourly totals to InfluxDB v2
type InfluxPublisher struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
}

// NewInflux creates the client and verifies the server is reachable
func NewInflux(ctx context.Context, cfg config.InfluxConfig, measurement string) (*InfluxPublisher, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	return &InfluxPublisher{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: measurement,
	}, nil
}

// WriteHourly writes one point per dated hourly bucket
func (p *InfluxPublisher) WriteHourly(ctx context.Context, buckets []models.HourlyBucket) (int, error) {
	points := HourlyPoints(p.measurement, buckets)
	if len(points) == 0 {
		return 0, nil
	}
	if err := p.writeAPI.WritePoint(ctx, points...); err != nil {
		return 0, fmt.Errorf("writing points: %w", err)
	}
	logger.Debug("Wrote %d points to %s", len(points), p.measurement)
	return len(points), nil
}

// Close closes the InfluxDB client
func (p *InfluxPublisher) Close() {
	p.client.Close()
}

// HourlyPoints builds the points for buckets that have both a date and an hour.
// The point time is the start of the hour in UTC.
func HourlyPoints(measurement string, buckets []models.HourlyBucket) []*write.Point {
	var points []*write.Point
	for _, b := range buckets {
		if !b.Date.Valid || !b.Hour.Valid {
			continue
		}
		d := b.Date.V
		ts := d.Add(time.Duration(b.Hour.V) * time.Hour)
		points = append(points, write.NewPoint(
			measurement,
			map[string]string{
				"date": d.Format("2006-01-02"),
			},
			map[string]interface{}{
				"grid_purchase":        b.GridPurchase,
				"grid_feedin":          b.GridFeedin,
				"is_peak_feed_in_hour": b.IsPeakFeedInHour,
			},
			ts,
		))
	}
	return points
}
