package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/insightdeck/insightdeck/internal/audit"
	"github.com/insightdeck/insightdeck/internal/common"
	"github.com/insightdeck/insightdeck/internal/conversation"
	"github.com/insightdeck/insightdeck/internal/generation"
)

type insightsReq struct {
	ConversationID string         `json:"conversationId"`
	MessageID      string         `json:"messageId"`
	Context        map[string]any `json:"context"`
	ChartData      any            `json:"chartData"`
}

func (h *Handler) GenerateInsights(c *gin.Context) {
	if _, ok := userID(c); !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req insightsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}

	prompt := promptFromContext(req.Context)
	res, err := h.runner().Insights(c.Request.Context(), prompt, req.ChartData, "", "")
	if err != nil {
		respondError(c, err)
		return
	}

	if req.ConversationID != "" {
		h.recordContent(c, req.ConversationID, req.MessageID,
			conversation.ContentTypeInsights, res, regionFromContext(req.Context))
	}
	c.JSON(http.StatusOK, res)
}

type policiesReq struct {
	ConversationID string         `json:"conversationId"`
	MessageID      string         `json:"messageId"`
	Context        map[string]any `json:"context"`
	Region         string         `json:"region"`
}

// GeneratePolicies is read-through on the policy cache: serve a cached
// payload when one exists, otherwise generate, then cache best-effort.
func (h *Handler) GeneratePolicies(c *gin.Context) {
	if _, ok := userID(c); !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req policiesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}

	region := strings.TrimSpace(req.Region)
	if region == "" {
		region = generation.DetectRegion(req.Context, "")
	}
	if region == "" {
		badRequest(c, "region is required")
		return
	}
	category := categoryFromContext(req.Context)

	if cached := h.Policies.Get(c.Request.Context(), region, category); cached != "" {
		var res generation.PolicyResult
		if err := json.Unmarshal([]byte(cached), &res); err == nil && len(res.Policies) > 0 {
			c.JSON(http.StatusOK, res)
			return
		}
	}

	res, err := h.runner().Policies(c.Request.Context(), region, category, promptFromContext(req.Context))
	if err != nil {
		respondError(c, err)
		return
	}

	if content, mErr := json.Marshal(res); mErr == nil {
		h.Recorder.Record(c.Request.Context(), audit.Job{
			Kind: audit.KindPolicyUpsert,
			Policy: &audit.PolicyUpsert{
				Region:      region,
				Category:    category,
				Content:     string(content),
				DataContext: promptFromContext(req.Context),
			},
		})
	}
	if req.ConversationID != "" {
		h.recordContent(c, req.ConversationID, req.MessageID,
			conversation.ContentTypePolicies, res, region)
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) recordContent(c *gin.Context, conversationID, messageID, contentType string, payload any, region string) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	var msgID *string
	if messageID != "" {
		msgID = &messageID
	}
	h.Recorder.Record(c.Request.Context(), audit.Job{
		Kind: audit.KindGeneratedContent,
		GeneratedContent: &conversation.GeneratedContent{
			ID:             newUUID(),
			ConversationID: conversationID,
			MessageID:      msgID,
			ContentType:    contentType,
			Content:        string(b),
			RegionContext:  region,
		},
	})
}

func regionFromContext(ctx map[string]any) string {
	if s, ok := ctx["region"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func categoryFromContext(ctx map[string]any) string {
	for _, key := range []string{"policy_category", "policyCategory", "category"} {
		if s, ok := ctx[key].(string); ok && s != "" {
			return s
		}
	}
	return "general"
}
