package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/insightdeck/insightdeck/internal/ai"
	"github.com/insightdeck/insightdeck/internal/common"
	"github.com/insightdeck/insightdeck/internal/conversation"
)

type chatReq struct {
	ConversationID string         `json:"conversationId"`
	Message        string         `json:"message"`
	UserContext    map[string]any `json:"userContext"`
}

// ConversationalChat drives the intent-gathering dialogue ahead of chart
// generation. Prototype mode: the route is mounted behind the fixed
// identity resolver.
func (h *Handler) ConversationalChat(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		badRequest(c, "message is required")
		return
	}

	ctx := c.Request.Context()

	conv, err := h.loadOrCreateConversation(c, uid, req.ConversationID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	// History is read before this turn's user message lands so the
	// model sees prior turns once and the new message exactly once.
	history, hErr := h.Conversations.History(ctx, conv.ID, 20)
	if hErr != nil {
		h.log.WithError(hErr).Warn("history load failed, continuing with empty history")
		history = nil
	}
	msgs := make([]ai.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}

	turn, err := h.runner().Turn(ctx, msgs, chatUserMessage(req.Message, req.UserContext, h.Conversations.ContextMap(conv)))
	if err != nil {
		respondError(c, err)
		return
	}

	// Persistence from here on is best-effort; the reply stands even
	// when the audit trail does not.
	if _, uErr := h.Conversations.AppendMessage(ctx, conv.ID, "user", req.Message, req.UserContext); uErr != nil {
		h.log.WithError(uErr).Warn("user message write failed")
	}

	meta := map[string]any{
		"needsMoreInfo":   turn.NeedsMoreInfo,
		"generateContent": turn.GenerateContent,
		"context":         turn.Context,
	}
	messageID := ""
	if asst, aErr := h.Conversations.AppendMessage(ctx, conv.ID, "assistant", turn.Response, meta); aErr != nil {
		h.log.WithError(aErr).Warn("assistant message write failed")
	} else {
		messageID = asst.ID
	}

	if mErr := h.Conversations.MergeContext(ctx, conv, turn.Context); mErr != nil {
		h.log.WithError(mErr).Warn("context merge failed")
	}

	c.JSON(http.StatusOK, gin.H{
		"conversationId":  conv.ID,
		"messageId":       messageID,
		"response":        turn.Response,
		"needsMoreInfo":   turn.NeedsMoreInfo,
		"generateContent": turn.GenerateContent,
		"context":         h.Conversations.ContextMap(conv),
	})
}

func (h *Handler) loadOrCreateConversation(c *gin.Context, uid, conversationID, firstMessage string) (*conversation.Conversation, error) {
	ctx := c.Request.Context()
	if conversationID != "" {
		return h.Conversations.Get(ctx, uid, conversationID)
	}
	title := strings.TrimSpace(firstMessage)
	if len(title) > 80 {
		title = title[:80]
	}
	return h.Conversations.Create(ctx, uid, title, nil)
}

func chatUserMessage(message string, userContext, convContext map[string]any) string {
	merged := map[string]any{}
	for k, v := range convContext {
		merged[k] = v
	}
	for k, v := range userContext {
		merged[k] = v
	}
	if len(merged) == 0 {
		return message
	}
	b, _ := json.Marshal(merged)
	return fmt.Sprintf("%s\n\nKnown context: %s", message, string(b))
}
