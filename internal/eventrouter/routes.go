// internal/eventrouter/routes.go
package eventrouter

import (
	"fmt"

	"studio-notify/internal/domain/identity"
	"studio-notify/internal/domain/notification"
	wstypes "studio-notify/internal/domain/websocket"
)

// Predicate decides whether an event concerns the current identity.
type Predicate func(id identity.Identity, p Payload) bool

// Projector turns an admitted payload into a notification draft.
type Projector func(id identity.Identity, p Payload) notification.Draft

type Route struct {
	Admit   Predicate
	Project Projector
}

func anyone(identity.Identity, Payload) bool { return true }

func roleIs(roles ...identity.Role) Predicate {
	return func(id identity.Identity, _ Payload) bool {
		for _, r := range roles {
			if id.HasRole(r) {
				return true
			}
		}
		return false
	}
}

// ownStudio admits studio owners whose studio id matches the payload's.
func ownStudio(id identity.Identity, p Payload) bool {
	return id.OwnsStudio(p.StudioID())
}

func either(preds ...Predicate) Predicate {
	return func(id identity.Identity, p Payload) bool {
		for _, pred := range preds {
			if pred(id, p) {
				return true
			}
		}
		return false
	}
}

// DefaultRoutes is the marketplace event table.
func DefaultRoutes() map[wstypes.EventType]Route {
	return map[wstypes.EventType]Route{
		wstypes.EventTypeNotificationNew: {
			Admit:   anyone,
			Project: projectRecord,
		},
		wstypes.EventTypeBookingConfirmed: {
			Admit: roleIs(identity.RoleClient),
			Project: func(_ identity.Identity, p Payload) notification.Draft {
				return notification.Draft{
					Type:    notification.TypeBookingConfirmed,
					Title:   "Booking Confirmed",
					Message: fmt.Sprintf("Your booking at %s has been confirmed", p.StringOr("studio.name", "the studio")),
				}
			},
		},
		wstypes.EventTypeBookingCancelled: {
			Admit: either(roleIs(identity.RoleClient), ownStudio),
			Project: func(id identity.Identity, p Payload) notification.Draft {
				msg := fmt.Sprintf("Your booking at %s has been cancelled", p.StringOr("studio.name", "the studio"))
				if id.HasRole(identity.RoleStudio) {
					msg = fmt.Sprintf("%s cancelled a booking", p.StringOr("client.name", "A client"))
				}
				return notification.Draft{
					Type:    notification.TypeBookingCancelled,
					Title:   "Booking Cancelled",
					Message: msg,
				}
			},
		},
		wstypes.EventTypeBookingReminder: {
			Admit: roleIs(identity.RoleClient),
			Project: func(_ identity.Identity, p Payload) notification.Draft {
				when := p.StringOr("startTime", "soon")
				if t := p.Time("startTime"); !t.IsZero() {
					when = t.Format("Jan 2, 15:04")
				}
				return notification.Draft{
					Type:    notification.TypeBookingReminder,
					Title:   "Booking Reminder",
					Message: fmt.Sprintf("Your session at %s starts at %s", p.StringOr("studio.name", "the studio"), when),
				}
			},
		},
		wstypes.EventTypeBookingNew: {
			Admit: ownStudio,
			Project: func(_ identity.Identity, p Payload) notification.Draft {
				return notification.Draft{
					Type:    notification.TypeBookingNew,
					Title:   "New Booking",
					Message: fmt.Sprintf("%s booked %s", p.StringOr("client.name", "A client"), p.StringOr("studio.name", "your studio")),
				}
			},
		},
		wstypes.EventTypePaymentReceived: {
			Admit: ownStudio,
			Project: func(_ identity.Identity, p Payload) notification.Draft {
				return notification.Draft{
					Type:    notification.TypePaymentReceived,
					Title:   "Payment Received",
					Message: fmt.Sprintf("Payment of %s received from %s", p.Amount("amount"), p.StringOr("client.name", "a client")),
				}
			},
		},
		wstypes.EventTypeMaintenanceDue: {
			Admit: ownStudio,
			Project: func(_ identity.Identity, p Payload) notification.Draft {
				return notification.Draft{
					Type:    notification.TypeMaintenanceDue,
					Title:   "Maintenance Due",
					Message: fmt.Sprintf("%s is due for maintenance", p.StringOr("equipment.name", "Equipment")),
				}
			},
		},
		wstypes.EventTypeStudioRegistration: {
			Admit: roleIs(identity.RoleAdmin),
			Project: func(_ identity.Identity, p Payload) notification.Draft {
				return notification.Draft{
					Type:    notification.TypeStudioRegistration,
					Title:   "New Studio Registration",
					Message: fmt.Sprintf("%s submitted a registration", p.StringOr("studio.name", "A studio")),
				}
			},
		},
		wstypes.EventTypeBookingDispute: {
			Admit: roleIs(identity.RoleAdmin),
			Project: func(_ identity.Identity, p Payload) notification.Draft {
				return notification.Draft{
					Type:    notification.TypeBookingDispute,
					Title:   "Booking Dispute",
					Message: fmt.Sprintf("A dispute was opened for booking %s", p.First("booking._id", "booking.id", "bookingId")),
				}
			},
		},
		wstypes.EventTypeSystemAlert: {
			Admit: roleIs(identity.RoleAdmin),
			Project: func(_ identity.Identity, p Payload) notification.Draft {
				d := notification.Draft{
					Type:    notification.TypeSystemAlert,
					Title:   p.StringOr("title", "System Alert"),
					Message: p.String("message"),
				}
				if pr, ok := notification.ParsePriority(p.String("severity")); ok {
					d.Priority = pr
				}
				return d
			},
		},
	}
}

// projectRecord reads a payload that already is a notification record.
func projectRecord(_ identity.Identity, p Payload) notification.Draft {
	return notification.Draft{
		ID:        p.First("id", "_id"),
		Type:      notification.Type(p.StringOr("type", string(notification.TypeGeneral))),
		Title:     p.String("title"),
		Message:   p.String("message"),
		Timestamp: p.Time("timestamp", "createdAt"),
		IsRead:    p.Bool("isRead"),
	}
}
