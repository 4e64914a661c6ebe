package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/energytracker/internal/config"
	"github.com/jgoulah/energytracker/pkg/models"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	sent         []published
	failOn       string
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	if topic == c.failOn {
		return &fakeToken{err: errors.New("broker said no")}
	}
	c.sent = append(c.sent, published{topic, qos, retained, payload.([]byte)})
	return &fakeToken{}
}

func (c *fakeClient) IsConnected() bool { return !c.disconnected }
func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func sampleReport() *models.Report {
	return &models.Report{
		ID:       "r-1",
		Rate:     10,
		Currency: "₹",
		Summaries: []models.DeviceSummary{
			{DeviceType: "air conditioner", MonthlyKWh: 1.5, HoursOn: 3, EstimatedCost: 15, Tip: "tip a"},
			{DeviceType: "light", MonthlyKWh: 0.1, HoursOn: 2, EstimatedCost: 1, Tip: "tip b"},
		},
		TotalKWh:    1.6,
		TotalCost:   16,
		GeneratedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestMessages(t *testing.T) {
	msgs, err := Messages("home/energy", sampleReport())
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "home/energy/air_conditioner/state", msgs[0].Topic)
	assert.Equal(t, "home/energy/light/state", msgs[1].Topic)
	assert.Equal(t, "home/energy/total/state", msgs[2].Topic)

	var device DevicePayload
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &device))
	assert.Equal(t, DevicePayload{
		ReportID: "r-1", DeviceType: "light", MonthlyKWh: 0.1, HoursOn: 2,
		EstimatedCost: 1, Currency: "₹", Tip: "tip b",
	}, device)

	var total TotalPayload
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &total))
	assert.Equal(t, 2, total.Devices)
	assert.Equal(t, 16.0, total.TotalCost)
	assert.Equal(t, "2024-01-02T03:04:05Z", total.GeneratedAt)
}

func TestTopicSegment(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e", topicSegment("a/b+c#d e"))
	assert.Equal(t, "fridge", topicSegment("fridge"))
}

func TestPublish(t *testing.T) {
	t.Run("publishes every message retained", func(t *testing.T) {
		fc := &fakeClient{}
		p := newWithClient(fc, "energytracker")

		n, err := p.Publish(context.Background(), sampleReport())
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		require.Len(t, fc.sent, 3)
		for _, m := range fc.sent {
			assert.True(t, m.retained)
			assert.Equal(t, byte(1), m.qos)
		}

		p.Close()
		assert.True(t, fc.disconnected)
	})

	t.Run("stops at first failure", func(t *testing.T) {
		fc := &fakeClient{failOn: "energytracker/light/state"}
		p := newWithClient(fc, "energytracker")

		n, err := p.Publish(context.Background(), sampleReport())
		assert.ErrorContains(t, err, "broker said no")
		assert.Equal(t, 1, n)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		n, err := newWithClient(&fakeClient{}, "x").Publish(ctx, sampleReport())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, n)
	})
}

func TestNewRequiresEnabled(t *testing.T) {
	_, err := New(config.MQTTConfig{})
	assert.ErrorContains(t, err, "not enabled")

	_, err = New(config.MQTTConfig{Enabled: true})
	assert.ErrorContains(t, err, "broker address is required")
}
