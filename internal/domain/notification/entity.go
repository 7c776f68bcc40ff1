// internal/domain/notification/entity.go
package notification

import (
	"encoding/json"
	"time"
)

type Type string

const (
	TypeBookingConfirmed   Type = "booking_confirmed"
	TypeBookingCancelled   Type = "booking_cancelled"
	TypeBookingReminder    Type = "booking_reminder"
	TypeBookingNew         Type = "booking_new"
	TypePaymentReceived    Type = "payment_received"
	TypeMaintenanceDue     Type = "maintenance_due"
	TypeStudioRegistration Type = "studio_registration"
	TypeBookingDispute     Type = "booking_dispute"
	TypeSystemAlert        Type = "system_alert"
	TypeGeneral            Type = "general"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority accepts the three priorities plus the severity words used by
// system alerts. Unknown values report false.
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "high", "critical", "urgent":
		return PriorityHigh, true
	case "medium", "normal", "warning":
		return PriorityMedium, true
	case "low", "info":
		return PriorityLow, true
	}
	return "", false
}

// DefaultPriority is the priority a type gets when the payload carries none.
func DefaultPriority(t Type) Priority {
	switch t {
	case TypeBookingConfirmed, TypeBookingCancelled, TypeBookingNew, TypeBookingDispute:
		return PriorityHigh
	case TypeMaintenanceDue:
		return PriorityLow
	}
	return PriorityMedium
}

type Notification struct {
	ID             string                 `json:"id"`
	Type           Type                   `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Timestamp      time.Time              `json:"timestamp"`
	IsRead         bool                   `json:"isRead"`
	Priority       Priority               `json:"priority"`
	Data           map[string]interface{} `json:"data,omitempty"`
	CorrelationKey string                 `json:"correlationKey,omitempty"`
}

// UnmarshalJSON accepts the backend's document shape as well (`_id`,
// `createdAt`) and fills in the default priority.
func (n *Notification) UnmarshalJSON(b []byte) error {
	type alias Notification
	aux := struct {
		*alias
		DocumentID string     `json:"_id"`
		CreatedAt  *time.Time `json:"createdAt"`
	}{alias: (*alias)(n)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = aux.DocumentID
	}
	if n.Timestamp.IsZero() && aux.CreatedAt != nil {
		n.Timestamp = *aux.CreatedAt
	}
	if n.Priority == "" {
		n.Priority = DefaultPriority(n.Type)
	}
	return nil
}

// URL returns the navigation target carried in Data, if any.
func (n Notification) URL() string {
	for _, key := range []string{"url", "actionUrl", "link"} {
		if v, ok := n.Data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Draft is a partially specified notification. Zero fields are defaulted by
// the store on insertion.
type Draft struct {
	ID             string
	Type           Type
	Title          string
	Message        string
	Timestamp      time.Time
	IsRead         bool
	Priority       Priority
	Data           map[string]interface{}
	CorrelationKey string
}

// DTOs

type Stats struct {
	Total       int `json:"total"`
	UnreadCount int `json:"unreadCount"`
}

type ListResponse struct {
	Notifications []Notification `json:"notifications"`
}
