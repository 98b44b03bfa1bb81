package heatmap

import (
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// SurveyHandler is called for every survey received over MQTT. name is the
// last level of the topic; survey is nil when err is set.
type SurveyHandler func(name string, survey *SurveyFile, err error)

// MQTTClient manages the MQTT connection and the survey subscription
type MQTTClient struct {
	client      mqtt.Client
	config      *Config
	handler     SurveyHandler
	isConnected bool
	mu          sync.RWMutex
}

// InitMQTT creates and connects an MQTT client. The broker comes from
// MQTT_BROKER or the config; when neither is set MQTT is disabled and this
// returns nil, nil.
func InitMQTT(config *Config, handler SurveyHandler) (*MQTTClient, error) {
	if config == nil {
		config = DefaultConfig()
	}

	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = config.MQTT.Broker
	}
	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}

	client := &MQTTClient{
		config:  config,
		handler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "heatsurvey"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry()

	return client, nil
}

// NewMQTTClientWithClient creates an MQTTClient around an existing
// mqtt.Client, such as MockClient. Call Subscribe once it is connected.
func NewMQTTClientWithClient(client mqtt.Client, config *Config, handler SurveyHandler) *MQTTClient {
	if config == nil {
		config = DefaultConfig()
	}
	return &MQTTClient{
		client:  client,
		config:  config,
		handler: handler,
	}
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// surveyTopic returns the configured subscription, or the default
func (c *MQTTClient) surveyTopic() string {
	if c.config.MQTT.SurveyTopic != "" {
		return c.config.MQTT.SurveyTopic
	}
	return DefaultSurveyTopic
}

// onConnect subscribes to the survey topic whenever the connection comes up
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)
	if err := c.subscribe(client); err != nil {
		log.Printf("Error subscribing to %s: %v", c.surveyTopic(), err)
	}
}

// Subscribe subscribes to the survey topic on the current connection
func (c *MQTTClient) Subscribe() error {
	c.setConnected(c.client.IsConnected())
	return c.subscribe(c.client)
}

func (c *MQTTClient) subscribe(client mqtt.Client) error {
	topic := c.surveyTopic()
	log.Printf("MQTT connected, subscribing to %s", topic)
	token := client.Subscribe(topic, 0, c.createMessageHandler())
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return token.Error()
	}
	log.Printf("Successfully subscribed to %s", topic)
	return nil
}

// onConnectionLost is called when the MQTT connection is lost
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

// onReconnecting is called when the client attempts to reconnect
func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("MQTT reconnecting...")
}

// createMessageHandler decodes survey payloads and hands them to the handler
func (c *MQTTClient) createMessageHandler() mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		name := SurveyNameFromTopic(msg.Topic())
		log.Printf("Received survey %s (topic: %s, size: %d bytes)", name, msg.Topic(), len(payload))

		survey, err := DecodeSurveyPayload(payload)
		if err != nil {
			log.Printf("Error decoding survey %s: %v", name, err)
		}
		if c.handler != nil {
			c.handler(name, survey, err)
		}
	}
}

// SurveyNameFromTopic returns the last level of topic, e.g.
// "heatsurvey/surveys/office" -> "office"
func SurveyNameFromTopic(topic string) string {
	topic = strings.TrimSuffix(topic, "/")
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// setConnected updates the connection status
func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}
