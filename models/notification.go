package models

import "time"

// DeviceToken is a push registration token for one of a user's devices
type DeviceToken struct {
	Token     string    `json:"token" gorm:"primaryKey;type:varchar(512)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(128);not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterDeviceRequest struct {
	Token string `json:"token" binding:"required"`
}

// MessageNotification is the payload of the background push task
type MessageNotification struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	RecipientID    string `json:"recipient_id"`
	Body           string `json:"body"`
}
