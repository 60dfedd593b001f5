package conversation

import "time"

type Conversation struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index;not null" json:"-"`
	Title     string    `gorm:"type:varchar(255)" json:"title"`
	Context   string    `gorm:"type:jsonb" json:"context"`
	Status    string    `gorm:"type:varchar(32);not null;default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Message rows are append-only; nothing in the core mutates or deletes
// them. History reconstruction relies on created_at ASC ordering.
type Message struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID string    `gorm:"type:uuid;index;not null" json:"conversation_id"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Metadata       string    `gorm:"type:jsonb" json:"metadata"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (Message) TableName() string { return "conversation_messages" }

const (
	ContentTypeCharts   = "charts"
	ContentTypeInsights = "insights"
	ContentTypePolicies = "policies"
)

// GeneratedContent is a write-once artifact per successful generation
// call; it is never updated in place.
type GeneratedContent struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID string    `gorm:"type:uuid;index;not null" json:"conversation_id"`
	MessageID      *string   `gorm:"type:uuid;index" json:"message_id,omitempty"`
	ContentType    string    `gorm:"type:varchar(32);not null" json:"content_type"`
	Content        string    `gorm:"type:jsonb;not null" json:"content"`
	RegionContext  string    `gorm:"type:varchar(128)" json:"region_context"`
	CreatedAt      time.Time `json:"created_at"`
}

func (GeneratedContent) TableName() string { return "generated_content" }
