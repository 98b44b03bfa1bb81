package heatmap

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultPublishPrefix is the topic prefix used when none is configured
const DefaultPublishPrefix = "heatsurvey"

// Publisher publishes survey summaries to MQTT:
// <prefix>/<survey>/<metric> per metric and <prefix>/<survey>/summary.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	summaries     map[string]*SurveySummary
	mu            sync.RWMutex
}

// NewPublisher creates a summary publisher. An empty prefix falls back to
// MQTT_PUBLISH_PREFIX and then DefaultPublishPrefix. A nil client disables
// publishing.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = DefaultPublishPrefix
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true,
		summaries:     make(map[string]*SurveySummary),
	}
}

// Prefix returns the topic prefix
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}

// PublishSummary publishes every metric summary and then the combined survey summary
func (p *Publisher) PublishSummary(s *SurveySummary) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	p.mu.Lock()
	p.summaries[s.Survey] = s
	p.mu.Unlock()

	for _, ms := range s.Metrics {
		topic := fmt.Sprintf("%s/%s/%s", p.publishPrefix, s.Survey, ms.Metric)
		msg := struct {
			MetricSummary
			Survey    string `json:"survey"`
			RunID     string `json:"runId"`
			Timestamp int64  `json:"timestamp"`
		}{ms, s.Survey, s.RunID, s.Timestamp}
		if err := p.publish(topic, msg); err != nil {
			log.Printf("Error publishing %s summary for %s: %v", ms.Metric, s.Survey, err)
			return err
		}
	}

	topic := fmt.Sprintf("%s/%s/summary", p.publishPrefix, s.Survey)
	if err := p.publish(topic, s); err != nil {
		log.Printf("Error publishing summary for %s: %v", s.Survey, err)
		return err
	}

	log.Printf("Published summary for %s (run %s, %d metrics)", s.Survey, s.RunID, len(s.Metrics))
	return nil
}

func (p *Publisher) publish(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// LastSummary returns the last summary published for a survey
func (p *Publisher) LastSummary(survey string) (*SurveySummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.summaries[survey]
	return s, ok
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
