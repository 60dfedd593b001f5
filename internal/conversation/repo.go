package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/insightdeck/insightdeck/internal/apperr"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, userID, title string, contextMap map[string]any) (*Conversation, error) {
	ctxJSON := "{}"
	if len(contextMap) > 0 {
		if b, err := json.Marshal(contextMap); err == nil {
			ctxJSON = string(b)
		}
	}
	c := &Conversation{
		ID:      uuid.NewString(),
		UserID:  userID,
		Title:   title,
		Context: ctxJSON,
		Status:  "active",
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repo) Get(ctx context.Context, userID, conversationID string) (*Conversation, error) {
	var c Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", conversationID, userID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// An id belonging to another user is indistinguishable from a
		// missing one.
		return nil, fmt.Errorf("conversation %s: %w", conversationID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// MergeContext overlays keys onto the conversation's context map and
// persists the result. Last write wins on concurrent turns.
func (r *Repo) MergeContext(ctx context.Context, c *Conversation, overlay map[string]any) error {
	if len(overlay) == 0 {
		return nil
	}
	merged := map[string]any{}
	if c.Context != "" {
		_ = json.Unmarshal([]byte(c.Context), &merged)
	}
	for k, v := range overlay {
		merged[k] = v
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	c.Context = string(b)
	return r.db.WithContext(ctx).Model(c).
		Updates(map[string]any{"context": c.Context, "updated_at": time.Now()}).Error
}

func (r *Repo) ContextMap(c *Conversation) map[string]any {
	out := map[string]any{}
	if c != nil && c.Context != "" {
		_ = json.Unmarshal([]byte(c.Context), &out)
	}
	return out
}

func (r *Repo) AppendMessage(ctx context.Context, conversationID, role, content string, metadata map[string]any) (*Message, error) {
	metaJSON := "{}"
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			metaJSON = string(b)
		}
	}
	m := &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metaJSON,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// History returns messages oldest first, the ordering the model input
// reconstruction depends on.
func (r *Repo) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var desc []Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&desc).Error
	if err != nil {
		return nil, err
	}
	asc := make([]Message, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		asc = append(asc, desc[i])
	}
	return asc, nil
}

func (r *Repo) SaveGenerated(ctx context.Context, conversationID string, messageID *string, contentType, content, region string) (*GeneratedContent, error) {
	g := &GeneratedContent{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		MessageID:      messageID,
		ContentType:    contentType,
		Content:        content,
		RegionContext:  region,
	}
	if err := r.db.WithContext(ctx).Create(g).Error; err != nil {
		return nil, err
	}
	return g, nil
}
