// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypeJoin         EventType = "join"
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Marketplace events (backend -> agent)
	EventTypeNotificationNew    EventType = "notification:new"
	EventTypeBookingConfirmed   EventType = "booking:confirmed"
	EventTypeBookingCancelled   EventType = "booking:cancelled"
	EventTypeBookingReminder    EventType = "booking:reminder"
	EventTypeBookingNew         EventType = "booking:new"
	EventTypePaymentReceived    EventType = "booking:payment_received"
	EventTypeMaintenanceDue     EventType = "equipment:maintenance_due"
	EventTypeStudioRegistration EventType = "studio:registration"
	EventTypeBookingDispute     EventType = "booking:dispute"
	EventTypeSystemAlert        EventType = "system:alert"

	// Bridge requests (local UI -> agent)
	EventTypeNotificationRead    EventType = "notification:read"
	EventTypeNotificationReadAll EventType = "notification:read_all"
	EventTypeNotificationDelete  EventType = "notification:delete"
	EventTypeNotificationList    EventType = "notification:list"
	EventTypeNotificationCount   EventType = "notification:count"

	// Bridge pushes (agent -> local UI)
	EventTypeAlert        EventType = "alert"
	EventTypeStoreChanged EventType = "store:changed"

	// Subscription events
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"
)

// WSMessage is the universal outbound message format
type WSMessage struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	ID        string      `json:"id,omitempty"`
}

// InboundMessage keeps the payload raw; only the consumer for Type knows its shape.
type InboundMessage struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	ID   string          `json:"id,omitempty"`
}

// Subscription channels that bridge clients can subscribe to
type ChannelType string

const (
	ChannelNotifications ChannelType = "notifications"
	ChannelAlerts        ChannelType = "alerts"
)

// JoinData announces the identity right after the stream handshake.
type JoinData struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Helper to create messages
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        uuid.NewString(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeData unmarshals the raw payload into target. An absent payload
// leaves target untouched.
func (m *InboundMessage) DecodeData(target interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, target)
}
