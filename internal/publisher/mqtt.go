package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jgoulah/energytracker/internal/config"
	"github.com/jgoulah/energytracker/internal/ctxlog"
	"github.com/jgoulah/energytracker/pkg/models"
)

const publishTimeout = 10 * time.Second

// client is the part of mqtt.Client the publisher uses
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher sends report summaries to an MQTT broker
type Publisher struct {
	client      client
	topicPrefix string
}

// Message is a single retained MQTT publication
type Message struct {
	Topic   string
	Payload []byte
}

// DevicePayload is published per device type
type DevicePayload struct {
	ReportID      string  `json:"report_id"`
	DeviceType    string  `json:"device_type"`
	MonthlyKWh    float64 `json:"monthly_kwh"`
	HoursOn       int     `json:"hours_on"`
	EstimatedCost float64 `json:"estimated_cost"`
	Currency      string  `json:"currency"`
	Tip           string  `json:"tip"`
}

// TotalPayload is published once per report
type TotalPayload struct {
	ReportID    string  `json:"report_id"`
	TotalKWh    float64 `json:"total_kwh"`
	TotalCost   float64 `json:"total_cost"`
	Rate        float64 `json:"rate"`
	Currency    string  `json:"currency"`
	Devices     int     `json:"devices"`
	GeneratedAt string  `json:"generated_at"`
}

// New connects to the configured MQTT broker
func New(cfg config.MQTTConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT publishing is not enabled in config")
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	// Configure MQTT client options
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(fmt.Sprintf("energytracker-%d", time.Now().UnixNano()))
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	// Create and connect client
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return newWithClient(c, cfg.GetTopicPrefix()), nil
}

func newWithClient(c client, topicPrefix string) *Publisher {
	return &Publisher{client: c, topicPrefix: topicPrefix}
}

// Messages builds the retained messages for a report: one state topic per
// device type followed by the totals topic
func Messages(topicPrefix string, r *models.Report) ([]Message, error) {
	msgs := make([]Message, 0, len(r.Summaries)+1)

	for _, s := range r.Summaries {
		body, err := json.Marshal(DevicePayload{
			ReportID:      r.ID,
			DeviceType:    s.DeviceType,
			MonthlyKWh:    s.MonthlyKWh,
			HoursOn:       s.HoursOn,
			EstimatedCost: s.EstimatedCost,
			Currency:      r.Currency,
			Tip:           s.Tip,
		})
		if err != nil {
			return nil, fmt.Errorf("encoding payload for %s: %w", s.DeviceType, err)
		}
		msgs = append(msgs, Message{
			Topic:   fmt.Sprintf("%s/%s/state", topicPrefix, topicSegment(s.DeviceType)),
			Payload: body,
		})
	}

	body, err := json.Marshal(TotalPayload{
		ReportID:    r.ID,
		TotalKWh:    r.TotalKWh,
		TotalCost:   r.TotalCost,
		Rate:        r.Rate,
		Currency:    r.Currency,
		Devices:     len(r.Summaries),
		GeneratedAt: r.GeneratedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding totals payload: %w", err)
	}
	msgs = append(msgs, Message{Topic: topicPrefix + "/total/state", Payload: body})

	return msgs, nil
}

// topicSegment keeps a device type from adding levels or wildcards to a topic
func topicSegment(deviceType string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ' ':
			return '_'
		}
		return r
	}, deviceType)
}

// Publish sends every message for the report, retained at QoS 1. It stops at
// the first failed publication.
func (p *Publisher) Publish(ctx context.Context, r *models.Report) (int, error) {
	msgs, err := Messages(p.topicPrefix, r)
	if err != nil {
		return 0, err
	}

	log := ctxlog.FromContext(ctx)
	for i, m := range msgs {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		token := p.client.Publish(m.Topic, 1, true, m.Payload)
		if !token.WaitTimeout(publishTimeout) {
			return i, fmt.Errorf("publishing %s: timed out", m.Topic)
		}
		if err := token.Error(); err != nil {
			return i, fmt.Errorf("publishing %s: %w", m.Topic, err)
		}
		log.Debug("published summary", "topic", m.Topic, "bytes", len(m.Payload))
	}

	return len(msgs), nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
