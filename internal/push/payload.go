package push

import (
	"fmt"
	"time"
)

// Action is one of the quick actions offered on a notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Data carries the references a client needs to resolve a notification.
type Data struct {
	MedicationID string `json:"medicationId"`
	LogID        string `json:"logId"`
	URL          string `json:"url"`
}

// Payload is the notification document delivered to subscribers. The field
// set and JSON names are a fixed contract with the service worker.
type Payload struct {
	Title              string   `json:"title"`
	Body               string   `json:"body"`
	Icon               string   `json:"icon"`
	Badge              string   `json:"badge"`
	Tag                string   `json:"tag,omitempty"`
	Data               Data     `json:"data,omitempty"`
	Actions            []Action `json:"actions,omitempty"`
	RequireInteraction bool     `json:"requireInteraction,omitempty"`
	Timestamp          int64    `json:"timestamp"`
}

// NewMedicationReminder builds the reminder payload for one due occurrence.
// The tag is scoped to the log entry so the client collapses repeated
// deliveries for the same occurrence into one visible notification.
func NewMedicationReminder(name string, dosage *string, medicationID, logID string, at time.Time) Payload {
	body := "Time to take your medication"
	if dosage != nil && *dosage != "" {
		body = fmt.Sprintf("Take %s", *dosage)
	}

	return Payload{
		Title: fmt.Sprintf("💊 Time for %s", name),
		Body:  body,
		Icon:  "/icons/icon-192x192.png",
		Badge: "/icons/icon-72x72.png",
		Tag:   fmt.Sprintf("med-%s", logID),
		Data: Data{
			MedicationID: medicationID,
			LogID:        logID,
			URL:          "/",
		},
		Actions: []Action{
			{Action: "taken", Title: "✓ Mark as Taken"},
			{Action: "snooze", Title: "⏰ Snooze 10 min"},
		},
		RequireInteraction: true,
		Timestamp:          at.UnixMilli(),
	}
}

// NewTestNotification builds the payload used by the push test endpoint.
func NewTestNotification(at time.Time) Payload {
	return Payload{
		Title:     "PillTime Test Notification",
		Body:      "This is a test notification from PillTime!",
		Icon:      "/icons/icon-192x192.png",
		Badge:     "/icons/badge-72x72.png",
		Timestamp: at.UnixMilli(),
	}
}
