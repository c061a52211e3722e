package dto

// NotificationSettings is the payload of the notification settings endpoints.
type NotificationSettings struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Message string `json:"message,omitempty"`
}

// Subscriber identifies an alert-channel destination.
type Subscriber struct {
	ChatID string `json:"chat_id"`
}
