package model

import "time"

// Roles a chat message can carry. The provider APIs use the same strings.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation groups an ordered exchange of messages owned by one user.
type Conversation struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"size:255" json:"title"`
	Messages  []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Message is a single role-tagged entry inside a conversation. Order is
// insertion order, nothing ever reorders it.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	ConversationID string    `gorm:"index;not null" json:"-"`
	Role           string    `gorm:"size:16;not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `json:"timestamp"`
}

func (Message) TableName() string { return "messages" }
