package models

import "time"

// Notification is an entry in a user's in-app inbox.
type Notification struct {
	ID        string         `bson:"id" json:"id"`
	UserID    string         `bson:"userId" json:"userId"`
	Type      string         `bson:"type" json:"type"`
	Title     string         `bson:"title" json:"title"`
	Body      string         `bson:"body" json:"body"`
	Data      map[string]any `bson:"data,omitempty" json:"data,omitempty"`
	Read      bool           `bson:"read" json:"read"`
	CreatedAt time.Time      `bson:"createdAt" json:"createdAt"`
}

// PushPayload is queued for delivery to a user's devices.
type PushPayload struct {
	UserID string            `json:"userId"`
	Event  string            `json:"event"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// AvailabilityAlert is a one-shot subscription to "expert is available again".
type AvailabilityAlert struct {
	ID           string     `bson:"id" json:"id"`
	ExpertID     string     `bson:"expertId" json:"expertId"`
	SubscriberID string     `bson:"subscriberId" json:"subscriberId"`
	Active       bool       `bson:"active" json:"active"`
	CreatedAt    time.Time  `bson:"createdAt" json:"createdAt"`
	FiredAt      *time.Time `bson:"firedAt,omitempty" json:"firedAt,omitempty"`
}
