package heatmap

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// doneToken is an already completed mqtt.Token
type doneToken struct {
	err error
}

// NewMockToken returns a completed token carrying err
func NewMockToken(err error) mqtt.Token {
	return doneToken{err: err}
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// MockMessage is a message recorded by MockClient.Publish
type MockMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MockClient is an in-memory mqtt.Client. It records publishes and routes
// SimulateMessage to subscriptions by topic filter, so survey ingest and
// summary publishing can be exercised without a broker.
type MockClient struct {
	mu           sync.RWMutex
	connected    bool
	connectErr   error
	publishErr   error
	subscribeErr error
	connectDelay time.Duration
	onConnect    mqtt.OnConnectHandler
	routes       map[string]mqtt.MessageHandler
	published    []MockMessage
}

// NewMockClient creates a disconnected mock client
func NewMockClient() *MockClient {
	return &MockClient{routes: make(map[string]mqtt.MessageHandler)}
}

func (c *MockClient) set(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// SetConnected forces the connection state
func (c *MockClient) SetConnected(connected bool) { c.set(func() { c.connected = connected }) }

// SetConnectError makes Connect fail with err
func (c *MockClient) SetConnectError(err error) { c.set(func() { c.connectErr = err }) }

// SetPublishError makes Publish fail with err
func (c *MockClient) SetPublishError(err error) { c.set(func() { c.publishErr = err }) }

// SetSubscribeError makes Subscribe fail with err
func (c *MockClient) SetSubscribeError(err error) { c.set(func() { c.subscribeErr = err }) }

// SetConnectDelay delays Connect to simulate a slow broker
func (c *MockClient) SetConnectDelay(d time.Duration) { c.set(func() { c.connectDelay = d }) }

// SetOnConnect registers the handler Connect runs after a successful connect
func (c *MockClient) SetOnConnect(h mqtt.OnConnectHandler) { c.set(func() { c.onConnect = h }) }

// GetPublishedMessages returns a copy of everything published so far
func (c *MockClient) GetPublishedMessages() []MockMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]MockMessage(nil), c.published...)
}

// Subscriptions returns the subscribed topic filters
func (c *MockClient) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	filters := make([]string, 0, len(c.routes))
	for f := range c.routes {
		filters = append(filters, f)
	}
	return filters
}

// SimulateMessage delivers payload to every subscription whose filter
// matches topic, honouring the + and # wildcards.
func (c *MockClient) SimulateMessage(topic string, payload []byte) {
	c.mu.RLock()
	var matched []mqtt.MessageHandler
	for f, h := range c.routes {
		if h != nil && topicMatches(f, topic) {
			matched = append(matched, h)
		}
	}
	c.mu.RUnlock()

	msg := &mockMessage{topic: topic, payload: payload}
	for _, h := range matched {
		h(c, msg)
	}
}

// topicMatches reports whether an MQTT topic filter matches topic
func topicMatches(filter, topic string) bool {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")
	for i, f := range fl {
		if f == "#" {
			return true
		}
		if i >= len(tl) || (f != "+" && f != tl[i]) {
			return false
		}
	}
	return len(fl) == len(tl)
}

func (c *MockClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *MockClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *MockClient) Connect() mqtt.Token {
	c.mu.RLock()
	delay, err := c.connectDelay, c.connectErr
	c.mu.RUnlock()
	time.Sleep(delay)
	if err != nil {
		return NewMockToken(err)
	}

	c.mu.Lock()
	c.connected = true
	onConnect := c.onConnect
	c.mu.Unlock()
	if onConnect != nil {
		go onConnect(c)
	}
	return NewMockToken(nil)
}

func (c *MockClient) Disconnect(uint) { c.SetConnected(false) }

func (c *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return NewMockToken(mqtt.ErrNotConnected)
	}
	if c.publishErr != nil {
		return NewMockToken(c.publishErr)
	}

	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	}
	c.published = append(c.published, MockMessage{Topic: topic, Payload: data, QoS: qos, Retain: retained})
	return NewMockToken(nil)
}

func (c *MockClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return c.SubscribeMultiple(map[string]byte{topic: qos}, callback)
}

func (c *MockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return NewMockToken(mqtt.ErrNotConnected)
	}
	if c.subscribeErr != nil {
		return NewMockToken(c.subscribeErr)
	}
	for f := range filters {
		c.routes[f] = callback
	}
	return NewMockToken(nil)
}

func (c *MockClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.routes, t)
	}
	return NewMockToken(nil)
}

// AddRoute registers a handler without subscribing
func (c *MockClient) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.set(func() { c.routes[topic] = callback })
}

func (c *MockClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// mockMessage is the mqtt.Message handed to subscribers by SimulateMessage
type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 0 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}
