package publisher

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-json-experiment/json"
	"github.com/google/uuid"

	"github.com/jgoulah/gridflow/internal/config"
	"github.com/jgoulah/gridflow/internal/export"
	"github.com/jgoulah/gridflow/internal/logger"
	"github.com/jgoulah/gridflow/pkg/models"
)

// Message is one retained MQTT publication
type Message struct {
	Topic   string
	Payload []byte
}

// SummaryPayload is published per serial
type SummaryPayload struct {
	Serial       string  `json:"serial"`
	Rank         int     `json:"rank"`
	GridPurchase float64 `json:"grid_purchase"`
	GridFeedin   float64 `json:"grid_feedin"`
}

// PeakPayload lists the peak feed-in hours of one date
type PeakPayload struct {
	Date       string  `json:"date"`
	Hours      []int   `json:"hours"`
	GridFeedin float64 `json:"grid_feedin"`
}

// MQTTPublisher publishes run results to an MQTT broker
type MQTTPublisher struct {
	client      mqtt.Client
	topicPrefix string
}

// NewMQTT connects to the configured broker
func NewMQTT(cfg config.MQTTConfig, topicPrefix string) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "gridflow"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(clientID + "-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &MQTTPublisher{client: client, topicPrefix: topicPrefix}, nil
}

// Publish sends every message retained at QoS 1
func (p *MQTTPublisher) Publish(msgs []Message) error {
	for _, m := range msgs {
		token := p.client.Publish(m.Topic, 1, true, m.Payload)
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("publishing %s: timed out", m.Topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing %s: %w", m.Topic, err)
		}
		logger.Debug("Published %s (%d bytes)", m.Topic, len(m.Payload))
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *MQTTPublisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// BuildMessages renders the serial summaries and the peak hours of each dated
// bucket group. Peak buckets without a date or hour are not published.
func BuildMessages(prefix string, summaries []models.SerialSummary, hourly []models.HourlyBucket) ([]Message, error) {
	prefix = strings.TrimSuffix(prefix, "/")
	var msgs []Message

	for i, s := range summaries {
		payload, err := json.Marshal(SummaryPayload{
			Serial:       s.Serial,
			Rank:         i + 1,
			GridPurchase: s.GridPurchase,
			GridFeedin:   s.GridFeedin,
		})
		if err != nil {
			return nil, fmt.Errorf("encoding summary for %s: %w", s.Serial, err)
		}
		msgs = append(msgs, Message{Topic: SummaryTopic(prefix, s.Serial), Payload: payload})
	}

	var order []string
	peaks := make(map[string]*PeakPayload)
	for _, b := range hourly {
		if !b.IsPeakFeedInHour || !b.Date.Valid || !b.Hour.Valid {
			continue
		}
		d := export.FormatDate(b.Date)
		pp, ok := peaks[d]
		if !ok {
			pp = &PeakPayload{Date: d, GridFeedin: b.GridFeedin}
			peaks[d] = pp
			order = append(order, d)
		}
		pp.Hours = append(pp.Hours, b.Hour.V)
	}
	for _, d := range order {
		payload, err := json.Marshal(peaks[d])
		if err != nil {
			return nil, fmt.Errorf("encoding peak for %s: %w", d, err)
		}
		msgs = append(msgs, Message{Topic: PeakTopic(prefix, d), Payload: payload})
	}

	return msgs, nil
}

// SummaryTopic is the retained topic of one serial's totals
func SummaryTopic(prefix, serial string) string {
	return fmt.Sprintf("%s/serial/%s/summary", prefix, topicSegment(serial))
}

// PeakTopic is the retained topic of one date's peak hours
func PeakTopic(prefix, date string) string {
	return fmt.Sprintf("%s/peak/%s", prefix, date)
}

// topicSegment replaces characters that MQTT reserves in topic names
func topicSegment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
