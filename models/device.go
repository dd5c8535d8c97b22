package models

import "time"

// Device is a push-capable installation registered by a user.
type Device struct {
	UserID    string    `bson:"userId" json:"userId"`
	FCMToken  string    `bson:"fcmToken" json:"fcmToken"`
	Platform  string    `bson:"platform,omitempty" json:"platform,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Expert is the bookable profile of a user offering consultations.
type Expert struct {
	ID                  string    `bson:"id" json:"id"`
	UserID              string    `bson:"userId" json:"userId"`
	DisplayName         string    `bson:"displayName" json:"displayName"`
	PricePerMinuteCents int64     `bson:"pricePerMinuteCents" json:"pricePerMinuteCents"`
	Currency            string    `bson:"currency" json:"currency"`
	Timezone            string    `bson:"timezone" json:"timezone"`
	CreatedAt           time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time `bson:"updatedAt" json:"updatedAt"`
}
