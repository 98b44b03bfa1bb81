package heatmap

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSummary() *SurveySummary {
	lo, hi := -80.0, -50.0
	return &SurveySummary{
		Survey:    "office",
		RunID:     "run-7",
		Timestamp: 1700000000,
		Width:     100,
		Height:    100,
		Points:    5,
		Metrics: []MetricSummary{
			{Metric: "sensor_rssi", Status: StatusOK, Min: &lo, Max: &hi, Points: 5},
			{Metric: "gateway_snr", Status: StatusSkipped, Skip: string(SkipInsufficientData)},
		},
	}
}

func TestNewPublisher_Prefix(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	assert.Equal(t, DefaultPublishPrefix, NewPublisher(nil, "").Prefix())
	assert.Equal(t, "lora", NewPublisher(nil, "lora").Prefix())

	t.Setenv("MQTT_PUBLISH_PREFIX", "site/a")
	assert.Equal(t, "site/a", NewPublisher(nil, "lora").Prefix(), "environment wins")
}

func TestPublisher_PublishSummary(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	mock := NewMockClient()
	mock.SetConnected(true)
	p := NewPublisher(mock, "lora")

	require.NoError(t, p.PublishSummary(testSummary()))

	msgs := mock.GetPublishedMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "lora/office/sensor_rssi", msgs[0].Topic)
	assert.Equal(t, "lora/office/gateway_snr", msgs[1].Topic)
	assert.Equal(t, "lora/office/summary", msgs[2].Topic)
	for _, m := range msgs {
		assert.True(t, m.Retain, m.Topic)
		assert.Equal(t, byte(0), m.QoS, m.Topic)
	}

	var metric map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &metric))
	assert.Equal(t, "office", metric["survey"])
	assert.Equal(t, "run-7", metric["runId"])
	assert.Equal(t, -80.0, metric["min"])

	last, ok := p.LastSummary("office")
	require.True(t, ok)
	assert.Equal(t, "run-7", last.RunID)
	_, ok = p.LastSummary("attic")
	assert.False(t, ok)
}

func TestPublisher_NotConnected(t *testing.T) {
	assert.Error(t, NewPublisher(nil, "x").PublishSummary(testSummary()))
	assert.Error(t, NewPublisher(NewMockClient(), "x").PublishSummary(testSummary()))
}

func TestPublisher_PublishError(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	mock.SetPublishError(errors.New("broker full"))

	err := NewPublisher(mock, "x").PublishSummary(testSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker full")
	assert.Empty(t, mock.GetPublishedMessages())
}

func TestPublisher_QoSAndRetain(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	p := NewPublisher(mock, "x")
	p.SetQoS(1)
	p.SetQoS(7)
	p.SetRetain(false)

	require.NoError(t, p.PublishSummary(testSummary()))
	for _, m := range mock.GetPublishedMessages() {
		assert.Equal(t, byte(1), m.QoS, "invalid QoS is ignored")
		assert.False(t, m.Retain)
	}
}
