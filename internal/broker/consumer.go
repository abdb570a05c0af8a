package broker

import (
	"encoding/json"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/piougy/CzechIdMng-sub011/internal/config"
	"github.com/piougy/CzechIdMng-sub011/internal/domains"
)

// RequestMessage represents incoming request from external services
type RequestMessage struct {
	RequestID string                 `json:"request_id"`
	APIKey    string                 `json:"api_key"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params"`
}

// ResponseMessage represents response to external services
type ResponseMessage struct {
	RequestID string       `json:"request_id"`
	Success   bool         `json:"success"`
	Data      interface{}  `json:"data"`
	Error     *ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RequestHandler handles a specific action
type RequestHandler func(req *RequestMessage) *ResponseMessage

// EventHandler handles one event type from the event topics. Events are
// fire-and-forget: no response is published.
type EventHandler func(eventType string, data map[string]interface{})

// Consumer subscribes to request and event topics and routes to handlers
type Consumer struct {
	client        mqtt.Client
	handlers      map[string]RequestHandler
	eventHandlers map[string]EventHandler
	publisher     *Publisher
}

func NewConsumer(cfg *config.BrokerConfig, publisher *Publisher) (*Consumer, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID + "-consumer").
		SetAutoReconnect(true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	log.Println("[consumer] Connected to broker")

	return &Consumer{
		client:        client,
		handlers:      make(map[string]RequestHandler),
		eventHandlers: make(map[string]EventHandler),
		publisher:     publisher,
	}, nil
}

// RegisterHandler registers a handler for an action
func (c *Consumer) RegisterHandler(action string, handler RequestHandler) {
	c.handlers[action] = handler
	log.Printf("[consumer] Registered handler for action: %s", action)
}

// RegisterEventHandler registers a handler for an event type
func (c *Consumer) RegisterEventHandler(eventType string, handler EventHandler) {
	c.eventHandlers[eventType] = handler
	log.Printf("[consumer] Registered handler for event: %s", eventType)
}

// Start subscribes to request and event topics
func (c *Consumer) Start() error {
	topic := "requests/#"
	token := c.client.Subscribe(topic, 1, c.handleMessage)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("[consumer] Subscribed to: %s", topic)

	eventTopic := "events/#"
	token = c.client.Subscribe(eventTopic, 1, c.handleEvent)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("[consumer] Subscribed to: %s", eventTopic)
	return nil
}

// handleEvent routes one event-topic message to the handler registered for
// its event type. The type comes from the message envelope, falling back to
// the topic.
func (c *Consumer) handleEvent(client mqtt.Client, msg mqtt.Message) {
	var evt domains.BrokerMessage
	if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
		log.Printf("[consumer] Failed to parse event: %v", err)
		return
	}

	eventType := evt.EventType
	if eventType == "" {
		if parsed, ok := ParseTopic(msg.Topic()); ok {
			eventType = parsed
		}
	}

	handler, ok := c.eventHandlers[eventType]
	if !ok {
		log.Printf("[consumer] No handler for event: %s", eventType)
		return
	}
	handler(eventType, evt.Data)
}

func (c *Consumer) handleMessage(client mqtt.Client, msg mqtt.Message) {
	log.Printf("[consumer] Received message on topic: %s", msg.Topic())

	// Topic format: requests/{action}
	parts := strings.Split(msg.Topic(), "/")
	if len(parts) < 2 {
		log.Printf("[consumer] Invalid topic format: %s", msg.Topic())
		return
	}
	topicAction := parts[len(parts)-1]

	// Parse message
	var req RequestMessage
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		log.Printf("[consumer] Failed to parse message: %v", err)
		c.publishError("", "parse_error", "Failed to parse request message")
		return
	}

	// Use action from message (or fallback to topic)
	action := req.Action
	if action == "" {
		action = topicAction
	}

	// Find handler
	handler, ok := c.handlers[action]
	if !ok {
		log.Printf("[consumer] No handler for action: %s", action)
		c.publishError(req.RequestID, "unknown_action", "Unknown action: "+action)
		return
	}

	// Execute handler
	resp := handler(&req)

	// Publish response
	c.publishResponse(req.RequestID, resp)
}

func (c *Consumer) publishResponse(requestID string, resp *ResponseMessage) {
	if requestID == "" {
		log.Println("[consumer] Cannot publish response: missing request_id")
		return
	}

	resp.RequestID = requestID

	payload, err := json.Marshal(resp)
	if err != nil {
		log.Printf("[consumer] Failed to marshal response: %v", err)
		return
	}

	topic := "responses/" + requestID
	if err := c.publisher.PublishRaw(topic, payload); err != nil {
		log.Printf("[consumer] Failed to publish response: %v", err)
	} else {
		log.Printf("[consumer] Published response to: %s", topic)
	}
}

func (c *Consumer) publishError(requestID, code, message string) {
	resp := &ResponseMessage{
		RequestID: requestID,
		Success:   false,
		Data:      nil,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
	c.publishResponse(requestID, resp)
}

func (c *Consumer) Close() {
	c.client.Disconnect(250)
	log.Println("[consumer] Disconnected from broker")
}
